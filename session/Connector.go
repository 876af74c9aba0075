//******************************************************************************************************
//  Connector.go - Gbtc
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
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gridstream-io/sttp-go/thread"
	"github.com/tevino/abool/v2"
)

// ConnectStatusEnum defines the type for the ConnectStatus enumeration.
type ConnectStatusEnum int

// ConnectStatus is an enumeration of the possible outcomes of a connection sequence.
var ConnectStatus = struct {
	// Success defines that a connection sequence succeeded.
	Success ConnectStatusEnum
	// Failed defines that a connection sequence failed, e.g., retries exhausted.
	Failed ConnectStatusEnum
	// Canceled defines that a connection sequence was canceled before completion.
	Canceled ConnectStatusEnum
}{
	Success:  0,
	Failed:   1,
	Canceled: 2,
}

// Connector represents a connector that will establish or automatically
// reestablish a connection from a Subscriber to a data publisher.
type Connector struct {
	// ErrorMessageCallback is called when an error message should be logged.
	ErrorMessageCallback func(string)

	// ReconnectCallback is called when Connector attempts to reconnect.
	ReconnectCallback func(*Subscriber)

	// Hostname is the publisher DNS name or IP.
	Hostname string

	// Port it the TCP/IP listening port of the publisher.
	Port uint16

	// MaxRetries defines the maximum number of times to retry a connection.
	// Set value to -1 to retry infinitely.
	MaxRetries int32

	// RetryInterval defines the base retry interval, in milliseconds. Retries will
	// exponentially back-off starting from this interval.
	RetryInterval int32

	// MaxRetryInterval defines the maximum retry interval, in milliseconds.
	MaxRetryInterval int32

	// AutoReconnect defines flag that determines if connections should be
	// automatically reattempted.
	AutoReconnect bool

	connectAttempt       int32
	connectionRefused    abool.AtomicBool
	cancel               abool.AtomicBool
	reconnectThread      *thread.Thread
	reconnectThreadMutex sync.Mutex
	waitTimer            *time.Timer
	waitTimerMutex       sync.Mutex

	assigningHandlerMutex sync.RWMutex
}

// NewConnector creates a new Connector with sensible defaults for retry pacing.
func NewConnector() *Connector {
	return &Connector{
		MaxRetries:       -1,
		RetryInterval:    1000,
		MaxRetryInterval: 30000,
	}
}

func (sub *Subscriber) autoReconnect() {
	sc := sub.connector

	if sc.cancel.IsSet() || sub.disposing.IsSet() {
		return
	}

	// Make sure to wait on any running reconnect to complete...
	sc.reconnectThreadMutex.Lock()
	reconnectThread := sc.reconnectThread
	sc.reconnectThreadMutex.Unlock()

	if reconnectThread != nil {
		reconnectThread.Join()
	}

	reconnectThread = thread.NewNamedThread("reconnect", func() {
		// Reset connection attempt counter if last attempt was not refused
		if sc.connectionRefused.IsNotSet() {
			sc.ResetConnection()
		}

		if sc.MaxRetries != -1 && sc.connectAttempt >= sc.MaxRetries {
			sc.dispatchErrorMessage("Maximum connection retries attempted. Auto-reconnect canceled.")
			return
		}

		sc.waitForRetry(sub)

		if sc.cancel.IsSet() || sub.disposing.IsSet() {
			return
		}

		pmReconnectAttempts.Inc()

		if sc.connect(sub, true) == ConnectStatus.Canceled {
			return
		}

		// Notify the user that reconnect attempt was completed.
		sc.BeginCallbackSync()

		if sc.cancel.IsNotSet() && sc.ReconnectCallback != nil {
			sc.ReconnectCallback(sub)
		}

		sc.EndCallbackSync()
	}, func(name string, recovered any) {
		sc.dispatchErrorMessage(fmt.Sprintf("%s thread panic recovered: %v", name, recovered))
	})

	sc.reconnectThreadMutex.Lock()
	sc.reconnectThread = reconnectThread
	sc.reconnectThreadMutex.Unlock()

	reconnectThread.Start()
}

// waitForRetry blocks the calling goroutine for an exponentially backed-off
// interval, capped at MaxRetryInterval: delay = retryInterval * 2^(attempt-1).
func (sc *Connector) waitForRetry(sub *Subscriber) {
	var exponent float64

	if sc.connectAttempt > 13 {
		exponent = 12
	} else {
		exponent = float64(sc.connectAttempt - 1)
	}

	var retryInterval int32

	if sc.connectAttempt > 0 {
		retryInterval = sc.RetryInterval * int32(math.Pow(2, exponent))
	}

	if retryInterval > sc.MaxRetryInterval {
		retryInterval = sc.MaxRetryInterval
	}

	var message strings.Builder

	message.WriteString("Connection")

	if sc.connectAttempt > 0 {
		message.WriteString(" attempt ")
		message.WriteString(strconv.Itoa(int(sc.connectAttempt + 1)))
	}

	message.WriteString(" to \"")
	message.WriteString(sc.Hostname)
	message.WriteString(":")
	message.WriteString(strconv.Itoa(int(sc.Port)))
	message.WriteString("\" was terminated. ")

	if retryInterval > 0 {
		message.WriteString("Attempting to reconnect in ")
		message.WriteString(fmt.Sprintf("%.2f", float64(retryInterval)/1000.0))
		message.WriteString(" seconds...")
	} else {
		message.WriteString("Attempting to reconnect...")
	}

	sc.dispatchErrorMessage(message.String())

	waitTimer := time.NewTimer(time.Duration(retryInterval) * time.Millisecond)

	sc.waitTimerMutex.Lock()
	sc.waitTimer = waitTimer
	sc.waitTimerMutex.Unlock()

	<-waitTimer.C
}

// Connect initiates a connection sequence for a Subscriber.
func (sc *Connector) Connect(sub *Subscriber) ConnectStatusEnum {
	if sc.cancel.IsSet() {
		return ConnectStatus.Canceled
	}

	return sc.connect(sub, false)
}

func (sc *Connector) connect(sub *Subscriber, autoReconnecting bool) ConnectStatusEnum {
	if sc.AutoReconnect {
		sub.AutoReconnectCallback = sub.autoReconnect
	}

	sc.cancel.UnSet()

	for sub.disposing.IsNotSet() {
		if sc.MaxRetries != -1 && sc.connectAttempt >= sc.MaxRetries {
			sc.dispatchErrorMessage("Maximum connection retries attempted. Auto-reconnect canceled.")
			break
		}

		sc.connectAttempt++

		if sub.disposing.IsSet() {
			return ConnectStatus.Canceled
		}

		err := sub.connect(sc.Hostname, sc.Port, autoReconnecting)

		if err == nil {
			break
		}

		if sub.disposing.IsNotSet() && sc.RetryInterval > 0 {
			autoReconnecting = true
			sc.waitForRetry(sub)

			if sc.cancel.IsSet() {
				return ConnectStatus.Canceled
			}
		}
	}

	if sub.disposing.IsSet() {
		return ConnectStatus.Canceled
	}

	if sub.IsConnected() {
		return ConnectStatus.Success
	}

	return ConnectStatus.Failed
}

// Cancel stops all current and future connection sequences.
func (sc *Connector) Cancel() {
	sc.cancel.Set()

	sc.waitTimerMutex.Lock()
	waitTimer := sc.waitTimer
	sc.waitTimerMutex.Unlock()

	if waitTimer != nil {
		waitTimer.Stop()
	}

	sc.reconnectThreadMutex.Lock()
	reconnectThread := sc.reconnectThread
	sc.reconnectThreadMutex.Unlock()

	if reconnectThread != nil {
		reconnectThread.Join()
	}
}

// ResetConnection resets Connector for a new connection.
func (sc *Connector) ResetConnection() {
	sc.connectAttempt = 0
	sc.cancel.UnSet()
}

func (sc *Connector) dispatchErrorMessage(message string) {
	sc.BeginCallbackSync()

	if sc.ErrorMessageCallback != nil {
		go sc.ErrorMessageCallback(message)
	}

	sc.EndCallbackSync()
}

// BeginCallbackAssignment informs Connector that a callback change has been initiated.
func (sc *Connector) BeginCallbackAssignment() {
	sc.assigningHandlerMutex.Lock()
}

// BeginCallbackSync begins a callback synchronization operation.
func (sc *Connector) BeginCallbackSync() {
	sc.assigningHandlerMutex.RLock()
}

// EndCallbackSync ends a callback synchronization operation.
func (sc *Connector) EndCallbackSync() {
	sc.assigningHandlerMutex.RUnlock()
}

// EndCallbackAssignment informs Connector that a callback change has been completed.
func (sc *Connector) EndCallbackAssignment() {
	sc.assigningHandlerMutex.Unlock()
}
