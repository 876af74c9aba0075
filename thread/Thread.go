//******************************************************************************************************
//  Thread.go - Gbtc
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

package thread

import "sync"

// Thread represents a thread-like wrapper for a Go routine. A panic raised by body is recovered
// and surfaced through PanicCallback rather than crashing the process - the reconnect and
// disconnect workers that use Thread must not be able to take down a long-lived subscriber
// process over one bad iteration.
type Thread struct {
	// Name identifies this Thread in diagnostic callbacks; optional.
	Name string

	// PanicCallback, if set, is invoked with the recovered panic value when body panics.
	PanicCallback func(name string, recovered any)

	body  func()
	mutex sync.Mutex
}

// NewThread creates a new Thread.
func NewThread(body func()) *Thread {
	return &Thread{body: body}
}

// NewNamedThread creates a new Thread identified by name, with panicCallback (optional) invoked
// if body panics instead of propagating the panic to the runtime.
func NewNamedThread(name string, body func(), panicCallback func(name string, recovered any)) *Thread {
	return &Thread{Name: name, PanicCallback: panicCallback, body: body}
}

// Start causes the thread to be scheduled for execution via a new Go routine.
func (thread *Thread) Start() {
	if thread.body == nil {
		return
	}

	thread.mutex.Lock()
	go thread.run()
}

// Join blocks the calling thread until this Thread terminates.
func (thread *Thread) Join() {
	if thread.body == nil {
		return
	}

	thread.mutex.Lock()
	//lint:ignore SA2001 -- desired behavior
	thread.mutex.Unlock()
}

func (thread *Thread) run() {
	defer thread.mutex.Unlock()
	defer func() {
		if recovered := recover(); recovered != nil && thread.PanicCallback != nil {
			thread.PanicCallback(thread.Name, recovered)
		}
	}()

	thread.body()
}
