//******************************************************************************************************
//  SignalIndexCache.go - Gbtc
//
//  Copyright © 2021, Grid Protection Alliance.  All Rights Reserved.
//
//  Licensed to the Grid Protection Alliance (GPA) under one or more contributor license agreements. See
//  the NOTICE file distributed with this work for additional information regarding copyright ownership.
//  The GPA licenses this file to you under the MIT License (MIT), the "License"; you may not use this
//  file except in compliance with the License. You may obtain a copy of the License at:
//
//      http://opensource.org/licenses/MIT
//
//  Unless agreed to in writing, the subject software distributed under the License is distributed on an
//  "AS-IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. Refer to the
//  License for the specific language governing permissions and limitations.
//
//  Code Modification History:
//  ----------------------------------------------------------------------------------------------------
//  09/09/2021 - J. Ritchie Carroll
//       Generated original version of source code.
//
//******************************************************************************************************

package session

import (
	"encoding/binary"
	"errors"
	"math"
	"strconv"

	"github.com/gridstream-io/sttp-go/guid"
	"github.com/gridstream-io/sttp-go/session/tssc"
	"github.com/gridstream-io/sttp-go/session/wire"
)

// MeasurementKey identifies a signal within a session: a globally unique signal ID paired with
// the publisher-namespace (source, id) pair it originated from, plus a runtimeID - a cheap
// integer handle assigned the first time a given (source, id) pair is encountered. Two keys with
// equal SignalID but different (Source, ID) are distinct measurements from different publisher
// namespaces and must never collide in the cache.
type MeasurementKey struct {
	SignalID  guid.Guid
	Source    string
	ID        uint64
	RuntimeID uint32
}

// SignalIndexCache maps 16-bit wire-local signal indices to MeasurementKeys. The structure
// additionally provides a reverse runtimeID lookup and an extra mapping to human-readable
// measurement keys.
type SignalIndexCache struct {
	reference       map[int32]uint32
	signalIDList    []guid.Guid
	sourceList      []string
	idList          []uint64
	runtimeIDList   []uint32
	keyIndex        map[string]int32 // (source, id) composite key -> signalIndex
	reverse         map[uint32]int32 // runtimeID -> signalIndex
	unauthorizedIDs []guid.Guid
	binaryLength    uint32
	maxSignalIndex  uint32
	tsscDecoder     *tssc.Decoder
}

// NewSignalIndexCache makes a new SignalIndexCache
func NewSignalIndexCache() *SignalIndexCache {
	return &SignalIndexCache{
		reference: make(map[int32]uint32),
		keyIndex:  make(map[string]int32),
		reverse:   make(map[uint32]int32),
	}
}

// measurementKeyID builds the composite (source, id) key used to detect an already-registered
// MeasurementKey - signalID alone is not a safe key since two distinct publisher namespaces can
// share it.
func measurementKeyID(source string, id uint64) string {
	return source + "\x00" + strconv.FormatUint(id, 10)
}

// UnauthorizedSignalIDs returns the signal IDs that were requested by the subscription but that
// the publisher declined to authorize.
func (sic *SignalIndexCache) UnauthorizedSignalIDs() []guid.Guid {
	return sic.unauthorizedIDs
}

// addRecord adds a new record to the SignalIndexCache for provided key Measurement details.
func (sic *SignalIndexCache) addRecord(ds *Subscriber, signalIndex int32, signalID guid.Guid, source string, id uint64, charSizeEstimate uint32 /* = 1 */) {
	runtimeID := ds.runtimeIDFor(source, id)

	index := uint32(len(sic.signalIDList))
	sic.reference[signalIndex] = index
	sic.signalIDList = append(sic.signalIDList, signalID)
	sic.sourceList = append(sic.sourceList, source)
	sic.idList = append(sic.idList, id)
	sic.runtimeIDList = append(sic.runtimeIDList, runtimeID)
	sic.keyIndex[measurementKeyID(source, id)] = signalIndex
	sic.reverse[runtimeID] = signalIndex

	if uint32(signalIndex) > sic.maxSignalIndex {
		sic.maxSignalIndex = uint32(signalIndex)
	}

	metadata := ds.LookupMetadata(signalID)

	// Register measurement metadata if not defined already
	if len(metadata.Source) == 0 {
		metadata.Source = source
		metadata.ID = id
	}

	// Char size here helps provide a rough-estimate on binary length used to reserve
	// bytes for a vector; the estimate covers the per-record fields only
	sic.binaryLength += 32 + uint32(len(source))*charSizeEstimate
}

// TODO: Function for use by DataPublisher
// clear removes all records from the SignalIndexCache.
// func (sic *SignalIndexCache) clear() {
// 	sic.reference = map[int32]uint32{}
// 	sic.signalIDList = nil
// 	sic.sourceList = nil
// 	sic.idList = nil
// 	sic.runtimeIDList = nil
// 	sic.keyIndex = map[string]int32{}
// 	sic.reverse = map[uint32]int32{}
// }

// Contains determines if the specified signalIndex exists with the SignalIndexCache.
func (sic *SignalIndexCache) Contains(signalIndex int32) bool {
	_, ok := sic.reference[signalIndex]
	return ok
}

// SignalID returns the signal ID Guid for the specified signalIndex in the SignalIndexCache.
func (sic *SignalIndexCache) SignalID(signalIndex int32) guid.Guid {
	if index, ok := sic.reference[signalIndex]; ok {
		return sic.signalIDList[index]
	}

	return guid.Empty
}

// SignalIDs returns a HashSet for all the Guid values found in the SignalIndexCache.
func (sic *SignalIndexCache) SignalIDs() guid.HashSet {
	return guid.NewHashSet(sic.signalIDList)
}

// Source returns the Measurement source string for the specified signalIndex in the SignalIndexCache.
func (sic *SignalIndexCache) Source(signalIndex int32) string {
	if index, ok := sic.reference[signalIndex]; ok {
		return sic.sourceList[index]
	}

	return ""
}

// ID returns the Measurement integer ID for the specified signalIndex in the SignalIndexCache.
func (sic *SignalIndexCache) ID(signalIndex int32) uint64 {
	if index, ok := sic.reference[signalIndex]; ok {
		return sic.idList[index]
	}

	return math.MaxUint64
}

// Record returns the key Measurement values, signalID Guid, source string, and integer ID and a
// final boolean value representing find success for the specified signalIndex in the SignalIndexCache.
func (sic *SignalIndexCache) Record(signalIndex int32) (guid.Guid, string, uint64, bool) {
	if index, ok := sic.reference[signalIndex]; ok {
		return sic.signalIDList[index], sic.sourceList[index], sic.idList[index], true
	}

	return guid.Empty, "", 0, false
}

// SignalIndex returns the signal index for the specified (source, id) MeasurementKey in the
// SignalIndexCache. This is the safe lookup: signalID alone cannot disambiguate two keys from
// different publisher namespaces that happen to share it, so callers that only hold a signalID
// should prefer IndexForRuntimeID.
func (sic *SignalIndexCache) SignalIndex(source string, id uint64) int32 {
	if index, ok := sic.keyIndex[measurementKeyID(source, id)]; ok {
		return index
	}

	return -1
}

// IndexForRuntimeID returns the signal index registered under the specified runtimeID, or -1 if
// no record with that runtimeID has been added to the SignalIndexCache.
func (sic *SignalIndexCache) IndexForRuntimeID(runtimeID uint32) int32 {
	if index, ok := sic.reverse[runtimeID]; ok {
		return index
	}

	return -1
}

// Key returns the full MeasurementKey - signalID, source, id, and runtimeID - registered for the
// specified signalIndex, and a final boolean representing find success.
func (sic *SignalIndexCache) Key(signalIndex int32) (MeasurementKey, bool) {
	index, ok := sic.reference[signalIndex]

	if !ok {
		return MeasurementKey{}, false
	}

	return MeasurementKey{
		SignalID:  sic.signalIDList[index],
		Source:    sic.sourceList[index],
		ID:        sic.idList[index],
		RuntimeID: sic.runtimeIDList[index],
	}, true
}

// MaxSignalIndex gets the largest signal index in the SignalIndexCache.
func (sic *SignalIndexCache) MaxSignalIndex() uint32 {
	return sic.maxSignalIndex
}

// Count returns the number of Measurement records that can be found in the SignalIndexCache.
func (sic *SignalIndexCache) Count() uint32 {
	return uint32(len(sic.signalIDList))
}

// BinaryLength gets the estimated binary length, in bytes, of the records added to the
// SignalIndexCache: 32 bytes plus the estimated source length for each record. It does not
// include the cache header or the unauthorized signal ID list.
func (sic *SignalIndexCache) BinaryLength() uint32 {
	return sic.binaryLength
}

// decode parses a SignalIndexCache from the specified byte buffer received from a DataPublisher.
// Every field read is bounds-checked through the wire package rather than trusting the
// publisher-reported binaryLength, since a corrupt or truncated payload must fail with an
// error instead of panicking the command-channel reader goroutine.
func (sic *SignalIndexCache) decode(ds *Subscriber, buffer []byte, subscriberID *guid.Guid) error {
	length := len(buffer)

	if length < 4 {
		return errors.New("not enough buffer provided to parse")
	}

	offset := 0

	// Byte size of cache
	binaryLength, err := wire.ReadU32(buffer, offset)

	if err != nil {
		return err
	}

	offset += 4

	if uint32(length) < binaryLength {
		return errors.New("not enough buffer provided to parse")
	}

	// Subscriber ID
	*subscriberID, err = wire.ReadGUID(buffer, offset, ds.SwapGuidEndianness)

	if err != nil {
		return errors.New("failed to parse SubscriberID: " + err.Error())
	}

	offset += 16

	// Number of references
	referenceCount, err := wire.ReadU32(buffer, offset)

	if err != nil {
		return err
	}

	offset += 4

	var i uint32

	for i = 0; i < referenceCount; i++ {
		// Signal index
		rawSignalIndex, err := wire.ReadU32(buffer, offset)

		if err != nil {
			return err
		}

		signalIndex := int32(rawSignalIndex)
		offset += 4

		// Signal ID
		signalID, err := wire.ReadGUID(buffer, offset, ds.SwapGuidEndianness)

		if err != nil {
			return errors.New("failed to parse SignalID: " + err.Error())
		}

		offset += 16

		// Source
		source, consumed, err := wire.ReadLenString(buffer, offset)

		if err != nil {
			return errors.New("failed to parse Source: " + err.Error())
		}

		source = ds.DecodeString([]byte(source))
		offset += consumed

		// ID
		id, err := wire.ReadU64(buffer, offset)

		if err != nil {
			return err
		}

		offset += 8

		sic.addRecord(ds, signalIndex, signalID, source, id, 1)
	}

	unauthorizedCount, err := wire.ReadU32(buffer, offset)

	if err != nil {
		// Older publisher protocol revisions omit the unauthorized-ID trailer entirely.
		return nil
	}

	offset += 4

	sic.unauthorizedIDs = make([]guid.Guid, 0, unauthorizedCount)

	for i = 0; i < unauthorizedCount; i++ {
		signalID, err := wire.ReadGUID(buffer, offset, ds.SwapGuidEndianness)

		if err != nil {
			return errors.New("failed to parse unauthorized SignalID: " + err.Error())
		}

		offset += 16
		sic.unauthorizedIDs = append(sic.unauthorizedIDs, signalID)
	}

	return nil
}

// Serialize encodes the SignalIndexCache into its wire representation, matching the layout
// produced by decode: total byte size, subscriber ID, reference records, then the
// unauthorized signal ID list. The unauthorized list is snapshotted into a local slice
// before any length is computed so a concurrent append cannot desynchronize the written
// count from the written bytes.
func (sic *SignalIndexCache) Serialize(subscriberID guid.Guid, swapEndianness bool) []byte {
	unauthorized := append([]guid.Guid(nil), sic.unauthorizedIDs...)

	size := 4 + 16 + 4
	for _, source := range sic.sourceList {
		size += 4 + 16 + 4 + len(source) + 8
	}
	size += 4 + 16*len(unauthorized)

	buffer := make([]byte, size)
	offset := 4

	copy(buffer[offset:], subscriberID.Bytes(swapEndianness))
	offset += 16

	binary.BigEndian.PutUint32(buffer[offset:], uint32(len(sic.signalIDList)))
	offset += 4

	for signalIndex, index := range sic.reference {
		binary.BigEndian.PutUint32(buffer[offset:], uint32(signalIndex))
		offset += 4

		copy(buffer[offset:], sic.signalIDList[index].Bytes(swapEndianness))
		offset += 16

		source := sic.sourceList[index]
		binary.BigEndian.PutUint32(buffer[offset:], uint32(len(source)))
		offset += 4
		copy(buffer[offset:], source)
		offset += len(source)

		binary.BigEndian.PutUint64(buffer[offset:], sic.idList[index])
		offset += 8
	}

	binary.BigEndian.PutUint32(buffer[offset:], uint32(len(unauthorized)))
	offset += 4

	for _, signalID := range unauthorized {
		copy(buffer[offset:], signalID.Bytes(swapEndianness))
		offset += 16
	}

	binary.BigEndian.PutUint32(buffer, uint32(offset))

	return buffer[:offset]
}
