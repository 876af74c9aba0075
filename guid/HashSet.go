//******************************************************************************************************
//  HashSet.go - Gbtc
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
//******************************************************************************************************

package guid

// HashSet is a simple set of unique Guid values.
type HashSet map[Guid]struct{}

// NewHashSet creates a HashSet from a slice of Guid values, removing duplicates.
func NewHashSet(values []Guid) HashSet {
	set := make(HashSet, len(values))

	for _, value := range values {
		set[value] = struct{}{}
	}

	return set
}

// Contains determines whether value is a member of the set.
func (set HashSet) Contains(value Guid) bool {
	_, ok := set[value]
	return ok
}

// Add inserts value into the set.
func (set HashSet) Add(value Guid) {
	set[value] = struct{}{}
}

// Remove deletes value from the set, if present.
func (set HashSet) Remove(value Guid) {
	delete(set, value)
}

// Slice returns the set's members as a slice, in no particular order.
func (set HashSet) Slice() []Guid {
	values := make([]Guid, 0, len(set))

	for value := range set {
		values = append(values, value)
	}

	return values
}

// Len returns the number of members in the set.
func (set HashSet) Len() int {
	return len(set)
}
