//******************************************************************************************************
//  CompactMeasurement.go - Gbtc
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
//  09/13/2021 - J. Ritchie Carroll
//       Generated original version of source code.
//
//******************************************************************************************************

package session

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/gridstream-io/sttp-go/ticks"
)

type compactMeasurementFlagsEnum byte

// compactMeasurementFlags are the bits of the per-measurement flag byte that precedes every
// compact measurement on the wire - distinct from the 32-bit StateFlags quality word that
// optionally follows.
var compactMeasurementFlags = struct {
	// DatumFlagsIncluded indicates the 32-bit StateFlags word follows the signal index and any timestamp delta.
	DatumFlagsIncluded compactMeasurementFlagsEnum
	// TimeIndexIncluded indicates a 32-bit timestamp delta follows the signal index.
	TimeIndexIncluded compactMeasurementFlagsEnum
	// BaseTimeOffset selects which of the two base-time slots the delta is relative to.
	BaseTimeOffset compactMeasurementFlagsEnum
}{
	DatumFlagsIncluded: 0x01,
	TimeIndexIncluded:  0x02,
	BaseTimeOffset:     0x04,
}

// CompactMeasurement defines a measured value, in simple compact format, for transmission or reception in STTP.
type CompactMeasurement struct {
	Value       float32
	Timestamp   ticks.Ticks
	SignalIndex uint16
	Flags       StateFlagsEnum
}

// NewCompactMeasurement constructs a CompactMeasurement from the specified byte buffer, per the
// wire layout: flag byte, 16-bit signal index, optional 32-bit timestamp delta (suppressed when
// the data packet carries its own timestamp), optional 32-bit state-flags word, 32-bit float.
// Returns the measurement and the number of bytes occupied by this measurement.
func NewCompactMeasurement(includeTime, useMillisecondResolution bool, baseTimeOffsets *[2]int64, buffer []byte) (CompactMeasurement, int, error) {
	var cm CompactMeasurement

	if len(buffer) < 7 {
		return cm, 0, errors.New("not enough buffer available to deserialize compact measurement")
	}

	// Compact Measurement Format:
	// 		Field:         Bytes:
	// 		--------       -------
	//		 flags            1
	//		 signalIndex      2
	//		 [timeDelta]    0/4
	//		 [stateFlags]    0/4
	//		 value            4

	flags := compactMeasurementFlagsEnum(buffer[0])
	offset := 1

	cm.SignalIndex = binary.BigEndian.Uint16(buffer[offset:])
	offset += 2

	var haveDelta bool
	var delta int64
	var timeIndex int

	if includeTime && (flags&compactMeasurementFlags.TimeIndexIncluded) != 0 {
		if len(buffer) < offset+4 {
			return cm, 0, errors.New("not enough buffer available to deserialize compact measurement timestamp")
		}

		rawDelta := int64(binary.BigEndian.Uint32(buffer[offset:]))
		offset += 4
		haveDelta = true

		if useMillisecondResolution {
			delta = rawDelta * int64(ticks.PerMillisecond)
		} else {
			delta = rawDelta
		}

		if (flags & compactMeasurementFlags.BaseTimeOffset) != 0 {
			timeIndex = 1
		}
	}

	if (flags & compactMeasurementFlags.DatumFlagsIncluded) != 0 {
		if len(buffer) < offset+4 {
			return cm, 0, errors.New("not enough buffer available to deserialize compact measurement flags")
		}

		cm.Flags = StateFlagsEnum(binary.BigEndian.Uint32(buffer[offset:]))
		offset += 4
	}

	if len(buffer) < offset+4 {
		return cm, 0, errors.New("not enough buffer available to deserialize compact measurement value")
	}

	cm.Value = math.Float32frombits(binary.BigEndian.Uint32(buffer[offset:]))
	offset += 4

	if haveDelta {
		baseTimeOffset := baseTimeOffsets[timeIndex]

		if baseTimeOffset > 0 {
			cm.Timestamp = ticks.Ticks(baseTimeOffset + delta)
		}
	}

	return cm, offset, nil
}

// Expand computes the full measurement from the compact representation, resolving the 16-bit
// wire-local signal index against the active SignalIndexCache.
func (cm *CompactMeasurement) Expand(signalIndexCache *SignalIndexCache) Measurement {
	return Measurement{
		SignalID:  signalIndexCache.SignalID(int32(cm.SignalIndex)),
		Timestamp: cm.Timestamp,
		Value:     float64(cm.Value),
		Flags:     cm.Flags,
	}
}

// Marshal serializes a CompactMeasurement to a byte buffer, always including both the timestamp
// delta (relative to baseTimeOffset, raw ticks) and state flags - used by the loopback round-trip
// tests.
func (cm *CompactMeasurement) Marshal(b []byte, baseTimeOffset int64) int {
	b[0] = byte(compactMeasurementFlags.DatumFlagsIncluded | compactMeasurementFlags.TimeIndexIncluded)
	offset := 1

	binary.BigEndian.PutUint16(b[offset:], cm.SignalIndex)
	offset += 2

	binary.BigEndian.PutUint32(b[offset:], uint32(int64(cm.Timestamp)-baseTimeOffset))
	offset += 4

	binary.BigEndian.PutUint32(b[offset:], uint32(cm.Flags))
	offset += 4

	binary.BigEndian.PutUint32(b[offset:], math.Float32bits(cm.Value))
	offset += 4

	return offset
}
