//******************************************************************************************************
//  Format.go - Gbtc
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
//  09/23/2021 - J. Ritchie Carroll
//       Generated original version of source code, format functions inspired by:
//	     https://stackoverflow.com/questions/13020308/how-to-fmt-printf-an-integer-with-thousands-comma
//
//******************************************************************************************************

// Package format renders the integer/float counters shown in status and progress messages -
// total measurements received, metadata row counts, refresh durations - with human-readable
// thousands grouping.
package format

import (
	"strconv"
	"strings"
)

func formatNumber(in string, out []byte, s byte) string {
	for i, j, k := len(in)-1, len(out)-1, 0; ; i, j = i-1, j-1 {
		out[j] = in[i]

		if i == 0 {
			return string(out)
		}

		if k++; k == 3 {
			j, k = j-1, 0
			out[j] = s
		}
	}
}

// Int formats an integer with a comma as the numeric thousands grouping symbol.
func Int(i int) string {
	return IntWith(i, ',')
}

// IntWith formats an integer with specified numeric thousands groupSymbol, e.g., ','.
func IntWith(i int, groupSymbol byte) string {
	return Int64With(int64(i), groupSymbol)
}

// Int64 formats a 64-bit integer with a comma as the numeric thousands grouping symbol.
func Int64(i int64) string {
	return Int64With(i, ',')
}

// Int64With formats a 64-bit integer with specified numeric thousands groupSymbol, e.g., ','.
func Int64With(i int64, groupSymbol byte) string {
	in := strconv.FormatInt(i, 10)
	digits := len(in)

	if i < 0 {
		digits-- // First character is the - sign (not a digit)
	}

	commas := (digits - 1) / 3
	out := make([]byte, len(in)+commas)

	if i < 0 {
		in, out[0] = in[1:], '-'
	}

	return formatNumber(in, out, groupSymbol)
}

// UInt formats an unsigned-integer with a comma as the numeric thousands grouping symbol.
func UInt(i uint) string {
	return UIntWith(i, ',')
}

// UIntWith formats an unsigned-integer with specified numeric thousands groupSymbol, e.g., ','.
func UIntWith(i uint, groupSymbol byte) string {
	return UInt64With(uint64(i), groupSymbol)
}

// UInt64 formats a 64-bit unsigned-integer with a comma as the numeric thousands grouping symbol.
func UInt64(i uint64) string {
	return UInt64With(i, ',')
}

// UInt64With formats a 64-bit unsigned-integer with specified numeric thousands groupSymbol, e.g., ','.
func UInt64With(i uint64, groupSymbol byte) string {
	in := strconv.FormatUint(i, 10)
	digits := len(in)
	commas := (digits - 1) / 3
	out := make([]byte, len(in)+commas)

	return formatNumber(in, out, groupSymbol)
}

// Float formats a floating-point number with a period as the decimal symbol and a comma as
// the numeric thousands grouping symbol.
func Float(f float64, prec int) string {
	return FloatWith(f, prec, '.', ',')
}

// FloatWith formats a floating-point number with the specified decimalSymbol, e.g., '.',
// and the specified numeric thousands groupSymbol, e.g., ','.
func FloatWith(f float64, prec int, decimalSymbol byte, groupSymbol byte) string {
	in := strconv.FormatFloat(f, 'f', prec, 64)
	decSymbolAsStr := string([]byte{decimalSymbol})

	if decimalSymbol != '.' {
		in = strings.Replace(in, ".", decSymbolAsStr, 1)
	}

	parts := strings.Split(in, decSymbolAsStr)
	var fraction string

	if len(parts) > 1 {
		in = parts[0]
		fraction = decSymbolAsStr + parts[1]
	}

	digits := len(in)

	if f < 0 {
		digits-- // First character is the - sign (not a digit)
	}

	commas := (digits - 1) / 3
	out := make([]byte, len(in)+commas)

	if f < 0 {
		in, out[0] = in[1:], '-'
	}

	return formatNumber(in, out, groupSymbol) + fraction
}
