// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"encoding/binary"

	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"

	"github.com/parsdao/swaprouter/contract"
)

// Storage key prefixes
var (
	ownerPrefix      = []byte("agg/owner")
	pausedPrefix     = []byte("agg/paused")
	authorizedPrefix = []byte("agg/authorized")
	protectedPrefix  = []byte("agg/protected")
	commitmentPrefix = []byte("agg/commitment")
	venuePrefix      = []byte("agg/venue")
	bridgePrefix     = []byte("agg/bridge")
)

// Venue config fields
const (
	venueFieldRouter byte = iota
	venueFieldActive
	venueFieldGas
	venueFieldReliability
	venueFieldExtraLen
	venueFieldExtraChunk
)

var slotTrue = common.Hash{31: 1}

// makeStorageKey creates a storage key from prefix and identifier
func makeStorageKey(prefix []byte, id []byte) common.Hash {
	h := blake3.New()
	h.Write(prefix)
	h.Write(id)
	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

func venueKey(kind VenueKind, field byte, index uint32) common.Hash {
	var id [6]byte
	id[0] = byte(kind)
	id[1] = field
	binary.BigEndian.PutUint32(id[2:], index)
	return makeStorageKey(venuePrefix, id[:])
}

// store reads and writes engine state under one account.
type store struct {
	db   contract.StateDB
	addr common.Address
}

func (s store) getBool(key common.Hash) bool {
	return s.db.GetState(s.addr, key) == slotTrue
}

func (s store) setBool(key common.Hash, v bool) {
	if v {
		s.db.SetState(s.addr, key, slotTrue)
		return
	}
	s.db.SetState(s.addr, key, common.Hash{})
}

func (s store) getUint64(key common.Hash) uint64 {
	v := s.db.GetState(s.addr, key)
	return binary.BigEndian.Uint64(v[24:])
}

func (s store) setUint64(key common.Hash, v uint64) {
	var h common.Hash
	binary.BigEndian.PutUint64(h[24:], v)
	s.db.SetState(s.addr, key, h)
}

func (s store) owner() common.Address {
	return common.BytesToAddress(s.db.GetState(s.addr, makeStorageKey(ownerPrefix, nil)).Bytes())
}

func (s store) setOwner(owner common.Address) {
	s.db.SetState(s.addr, makeStorageKey(ownerPrefix, nil), common.BytesToHash(owner.Bytes()))
}

// bridgeAsset is the configured multi-hop asset, or the zero address when
// the engine default applies.
func (s store) bridgeAsset() common.Address {
	return common.BytesToAddress(s.db.GetState(s.addr, makeStorageKey(bridgePrefix, nil)).Bytes())
}

func (s store) setBridgeAsset(asset common.Address) {
	s.db.SetState(s.addr, makeStorageKey(bridgePrefix, nil), common.BytesToHash(asset.Bytes()))
}

func (s store) paused() bool {
	return s.getBool(makeStorageKey(pausedPrefix, nil))
}

func (s store) setPaused(v bool) {
	s.setBool(makeStorageKey(pausedPrefix, nil), v)
}

func (s store) authorized(addr common.Address) bool {
	return s.getBool(makeStorageKey(authorizedPrefix, addr.Bytes()))
}

func (s store) setAuthorized(addr common.Address, v bool) {
	s.setBool(makeStorageKey(authorizedPrefix, addr.Bytes()), v)
}

func (s store) protected(addr common.Address) bool {
	return s.getBool(makeStorageKey(protectedPrefix, addr.Bytes()))
}

func (s store) setProtected(addr common.Address, v bool) {
	s.setBool(makeStorageKey(protectedPrefix, addr.Bytes()), v)
}

func (s store) commitmentUsed(c common.Hash) bool {
	return s.getBool(makeStorageKey(commitmentPrefix, c.Bytes()))
}

// markCommitmentUsed is append-only; there is no way to clear the slot.
func (s store) markCommitmentUsed(c common.Hash) {
	s.setBool(makeStorageKey(commitmentPrefix, c.Bytes()), true)
}

func (s store) venueConfig(kind VenueKind) VenueConfig {
	cfg := VenueConfig{
		Router:      common.BytesToAddress(s.db.GetState(s.addr, venueKey(kind, venueFieldRouter, 0)).Bytes()),
		Active:      s.getBool(venueKey(kind, venueFieldActive, 0)),
		GasEstimate: s.getUint64(venueKey(kind, venueFieldGas, 0)),
		Reliability: s.getUint64(venueKey(kind, venueFieldReliability, 0)),
	}

	n := s.getUint64(venueKey(kind, venueFieldExtraLen, 0))
	if n == 0 {
		return cfg
	}
	cfg.ExtraData = make([]byte, 0, n)
	for i := uint32(0); uint64(len(cfg.ExtraData)) < n; i++ {
		chunk := s.db.GetState(s.addr, venueKey(kind, venueFieldExtraChunk, i))
		remaining := n - uint64(len(cfg.ExtraData))
		if remaining > common.HashLength {
			remaining = common.HashLength
		}
		cfg.ExtraData = append(cfg.ExtraData, chunk[:remaining]...)
	}
	return cfg
}

// setVenueConfig overwrites every field, clearing chunks the previous
// extra data used beyond the new length.
func (s store) setVenueConfig(kind VenueKind, cfg VenueConfig) {
	s.db.SetState(s.addr, venueKey(kind, venueFieldRouter, 0), common.BytesToHash(cfg.Router.Bytes()))
	s.setBool(venueKey(kind, venueFieldActive, 0), cfg.Active)
	s.setUint64(venueKey(kind, venueFieldGas, 0), cfg.GasEstimate)
	s.setUint64(venueKey(kind, venueFieldReliability, 0), cfg.Reliability)

	oldChunks := chunkCount(s.getUint64(venueKey(kind, venueFieldExtraLen, 0)))
	newChunks := chunkCount(uint64(len(cfg.ExtraData)))
	for i := uint32(0); i < newChunks; i++ {
		var chunk common.Hash
		copy(chunk[:], cfg.ExtraData[i*common.HashLength:])
		s.db.SetState(s.addr, venueKey(kind, venueFieldExtraChunk, i), chunk)
	}
	for i := newChunks; i < oldChunks; i++ {
		s.db.SetState(s.addr, venueKey(kind, venueFieldExtraChunk, i), common.Hash{})
	}
	s.setUint64(venueKey(kind, venueFieldExtraLen, 0), uint64(len(cfg.ExtraData)))
}

func chunkCount(n uint64) uint32 {
	return uint32((n + common.HashLength - 1) / common.HashLength)
}
