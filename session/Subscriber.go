//******************************************************************************************************
//  Subscriber.go - Gbtc
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
//  09/16/2021 - J. Ritchie Carroll
//       Generated original version of source code.
//
//******************************************************************************************************

package session

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gridstream-io/sttp-go/guid"
	"github.com/gridstream-io/sttp-go/session/tssc"
	"github.com/gridstream-io/sttp-go/session/wire"
	"github.com/gridstream-io/sttp-go/thread"
	"github.com/gridstream-io/sttp-go/ticks"
	"github.com/tevino/abool/v2"
)

type cipherKeyPair struct {
	key []byte
	iv  []byte
}

// Subscriber implements the client side of an STTP session: connection lifecycle,
// operational-mode negotiation, command dispatch, and measurement decoding. A Subscriber is
// normally driven through a Connector rather than dialed directly.
type Subscriber struct {
	// CompressPayloadData determines whether data-packet payloads are TSSC-compressed.
	CompressPayloadData bool
	// CompressMetadata determines whether the metadata response is GZip-compressed.
	CompressMetadata bool
	// CompressSignalIndexCache determines whether the signal index cache response is GZip-compressed.
	CompressSignalIndexCache bool
	// Version defines the target STTP protocol version sent with DefineOperationalModes.
	Version byte
	// SwapGuidEndianness requests the legacy Microsoft mixed-endian GUID wire layout.
	SwapGuidEndianness bool
	// MaxFrameSize bounds the size, in bytes, of a single command-channel response payload
	// before the connection is considered fatally out of sync and torn down.
	MaxFrameSize uint32
	// BufferBlockGapTimeout bounds how long the buffer-block reorder cache will wait on a
	// missing sequence number before warning and skipping past the gap. Zero uses
	// defaultBufferBlockGapTimeout.
	BufferBlockGapTimeout time.Duration

	// StatusMessageCallback is called with informational messages.
	StatusMessageCallback func(string)
	// ErrorMessageCallback is called with error messages.
	ErrorMessageCallback func(string)
	// MetadataReceivedCallback is called with the raw bytes of a metadata response.
	MetadataReceivedCallback func([]byte)
	// DataStartTimeCallback is called with the timestamp of the first measurement received.
	DataStartTimeCallback func(ticks.Ticks)
	// ConfigurationChangedCallback is called when the publisher reports its configuration changed.
	ConfigurationChangedCallback func()
	// ProcessingCompleteCallback is called when temporal (historical) processing completes.
	ProcessingCompleteCallback func(message string)
	// NewMeasurementsCallback is called with newly decoded measurements.
	NewMeasurementsCallback func(measurements []Measurement)
	// NewBufferBlocksCallback is called with newly reordered buffer blocks.
	NewBufferBlocksCallback func(bufferBlocks []BufferBlock)
	// NotificationReceivedCallback is called with a publisher notification string.
	NotificationReceivedCallback func(notification string)
	// SubscriptionUpdatedCallback is called after a new SignalIndexCache becomes active.
	SubscriptionUpdatedCallback func(signalIndexCache *SignalIndexCache)
	// ConnectionTerminatedCallback is called when the connection to the publisher is lost.
	ConnectionTerminatedCallback func()
	// ConnectionEstablishedCallback is called after a connection is successfully established.
	ConnectionEstablishedCallback func()
	// AutoReconnectCallback is assigned by a Connector with AutoReconnect enabled.
	AutoReconnectCallback func()

	connector    *Connector
	subscription SubscriptionInfo

	commandChannel net.Conn
	commandReader  *bufio.Reader
	dataChannel    *net.UDPConn

	writeMutex sync.Mutex

	connected  abool.AtomicBool
	subscribed abool.AtomicBool
	disposing  abool.AtomicBool

	subscriberID guid.Guid

	signalIndexCache [2]*SignalIndexCache
	activeIndex      int32

	baseTimeOffsets [2]int64
	timeIndex       int32

	cipherKeys  [2]cipherKeyPair
	cipherIndex int32

	tsscDecoder         *tssc.Decoder
	tsscResetRequested  bool
	tsscLastOOSReported bool
	tsscMutex           sync.Mutex

	metadataMutex    sync.RWMutex
	metadataRegistry map[guid.Guid]*MeasurementMetadata

	runtimeIDMutex sync.Mutex
	runtimeIDNext  uint32
	runtimeIDs     map[string]uint32

	pendingMutex   sync.Mutex
	pendingReplies map[ServerCommandEnum]chan commandReply

	bufferBlockMutex    sync.Mutex
	bufferBlockExpected uint32
	bufferBlockCache    map[uint32]BufferBlock
	bufferBlockGapSince time.Time

	totalCommandChannelBytesReceived uint64
	totalDataChannelBytesReceived    uint64
	totalMeasurementsReceived        uint64

	disconnectThread *thread.Thread
	disconnectMutex  sync.Mutex

	metadataRefreshStartedAt int64

	assigningHandlerMutex sync.RWMutex
}

type commandReply struct {
	succeeded bool
	message   string
}

// NewSubscriber creates a new Subscriber with a freshly constructed Connector and
// sensible protocol defaults (version 2, all compression negotiated on).
func NewSubscriber() *Subscriber {
	sub := &Subscriber{
		connector:                NewConnector(),
		CompressPayloadData:      true,
		CompressMetadata:         true,
		CompressSignalIndexCache: true,
		Version:                  2,
		MaxFrameSize:             defaultMaxFrameSize,
		metadataRegistry:         make(map[guid.Guid]*MeasurementMetadata),
		runtimeIDs:               make(map[string]uint32),
		pendingReplies:           make(map[ServerCommandEnum]chan commandReply),
		bufferBlockCache:         make(map[uint32]BufferBlock),
	}

	sub.signalIndexCache[0] = NewSignalIndexCache()
	sub.signalIndexCache[1] = NewSignalIndexCache()
	sub.tsscDecoder = tssc.NewDecoder(0)

	return sub
}

// Connector returns the Connector driving this Subscriber's connection lifecycle.
func (sub *Subscriber) Connector() *Connector {
	return sub.connector
}

// Subscription returns a pointer to the SubscriptionInfo that will be used on the next Subscribe call.
func (sub *Subscriber) Subscription() *SubscriptionInfo {
	return &sub.subscription
}

// SetSubscriptionInfo replaces the SubscriptionInfo that will be used on the next Subscribe call.
func (sub *Subscriber) SetSubscriptionInfo(info SubscriptionInfo) {
	sub.subscription = info
}

// IsConnected determines if the Subscriber is currently connected to a publisher.
func (sub *Subscriber) IsConnected() bool {
	return sub.connected.IsSet()
}

// IsSubscribed determines if the Subscriber is currently subscribed to a data stream.
func (sub *Subscriber) IsSubscribed() bool {
	return sub.subscribed.IsSet()
}

// SubscriberID gets the subscriber ID assigned by the publisher upon receipt of the SignalIndexCache.
func (sub *Subscriber) SubscriberID() guid.Guid {
	return sub.subscriberID
}

// ActiveSignalIndexCache gets the currently active signal index cache.
func (sub *Subscriber) ActiveSignalIndexCache() *SignalIndexCache {
	return sub.signalIndexCache[atomic.LoadInt32(&sub.activeIndex)]
}

// TotalCommandChannelBytesReceived gets the total number of bytes received via the command channel since last connection.
func (sub *Subscriber) TotalCommandChannelBytesReceived() uint64 {
	return atomic.LoadUint64(&sub.totalCommandChannelBytesReceived)
}

// TotalDataChannelBytesReceived gets the total number of bytes received via the data channel since last connection.
func (sub *Subscriber) TotalDataChannelBytesReceived() uint64 {
	return atomic.LoadUint64(&sub.totalDataChannelBytesReceived)
}

// TotalMeasurementsReceived gets the total number of measurements received since last subscription.
func (sub *Subscriber) TotalMeasurementsReceived() uint64 {
	return atomic.LoadUint64(&sub.totalMeasurementsReceived)
}

// LookupMetadata gets the MeasurementMetadata for the specified signalID from the local registry,
// creating an empty record on first reference.
func (sub *Subscriber) LookupMetadata(signalID guid.Guid) *MeasurementMetadata {
	sub.metadataMutex.Lock()
	defer sub.metadataMutex.Unlock()

	metadata, ok := sub.metadataRegistry[signalID]

	if !ok {
		metadata = &MeasurementMetadata{SignalID: signalID, Multiplier: 1.0}
		sub.metadataRegistry[signalID] = metadata
	}

	return metadata
}

// runtimeIDFor returns the runtimeID assigned to the specified (source, id) MeasurementKey pair,
// assigning the next available one on first reference. Scoped to this Subscriber instance rather
// than process-wide, per the Open Question resolution recorded in DESIGN.md: a session-scoped
// registry preserves the "same (source, id) -> same runtimeID" invariant within a subscription
// without introducing hidden cross-session coupling.
func (sub *Subscriber) runtimeIDFor(source string, id uint64) uint32 {
	sub.runtimeIDMutex.Lock()
	defer sub.runtimeIDMutex.Unlock()

	key := measurementKeyID(source, id)

	if runtimeID, ok := sub.runtimeIDs[key]; ok {
		return runtimeID
	}

	sub.runtimeIDNext++
	sub.runtimeIDs[key] = sub.runtimeIDNext

	return sub.runtimeIDNext
}

// Metadata gets the MeasurementMetadata associated with a decoded Measurement.
func (sub *Subscriber) Metadata(measurement *Measurement) *MeasurementMetadata {
	return sub.LookupMetadata(measurement.SignalID)
}

// AdjustedValue gets the Value of a Measurement with any linear Adder/Multiplier adjustments applied.
func (sub *Subscriber) AdjustedValue(measurement *Measurement) float64 {
	metadata := sub.Metadata(measurement)
	return measurement.Value*metadata.Multiplier + metadata.Adder
}

// DecodeString decodes bytes received over the wire to a string. Only UTF-8 is supported.
func (sub *Subscriber) DecodeString(data []byte) string {
	return string(data)
}

// EncodeString encodes a string for transmission over the wire. Only UTF-8 is supported.
func (sub *Subscriber) EncodeString(value string) []byte {
	return []byte(value)
}

// BeginCallbackAssignment informs the Subscriber that a callback change has been initiated.
func (sub *Subscriber) BeginCallbackAssignment() {
	sub.assigningHandlerMutex.Lock()
}

// BeginCallbackSync begins a callback synchronization operation.
func (sub *Subscriber) BeginCallbackSync() {
	sub.assigningHandlerMutex.RLock()
}

// EndCallbackSync ends a callback synchronization operation.
func (sub *Subscriber) EndCallbackSync() {
	sub.assigningHandlerMutex.RUnlock()
}

// EndCallbackAssignment informs the Subscriber that a callback change has been completed.
func (sub *Subscriber) EndCallbackAssignment() {
	sub.assigningHandlerMutex.Unlock()
}

func (sub *Subscriber) dispatchStatusMessage(message string) {
	sub.BeginCallbackSync()

	if sub.StatusMessageCallback != nil {
		go sub.StatusMessageCallback(message)
	}

	sub.EndCallbackSync()
}

func (sub *Subscriber) dispatchErrorMessage(message string) {
	sub.BeginCallbackSync()

	if sub.ErrorMessageCallback != nil {
		go sub.ErrorMessageCallback(message)
	}

	sub.EndCallbackSync()
}

// connect opens the TCP command channel, negotiates operational modes, and starts the
// command-channel reader. Called by Connector as part of its retry loop.
func (sub *Subscriber) connect(hostname string, port uint16, autoReconnecting bool) error {
	if sub.disposing.IsSet() {
		return errors.New("subscriber is disposing")
	}

	sub.disposing.UnSet()

	address := net.JoinHostPort(hostname, strconv.Itoa(int(port)))
	conn, err := net.DialTimeout("tcp", address, 5*time.Second)

	if err != nil {
		return err
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}

	sub.commandChannel = conn
	sub.commandReader = bufio.NewReaderSize(conn, 16384)

	sub.resetSessionState()

	sub.connected.Set()

	go sub.runCommandChannel()

	if err := sub.sendOperationalModes(); err != nil {
		sub.connected.UnSet()
		_ = conn.Close()
		return err
	}

	pmConnectionsEstablished.Inc()
	sub.dispatchStatusMessage("Connected to " + resolveDNSName(address))

	sub.BeginCallbackSync()

	if sub.ConnectionEstablishedCallback != nil {
		sub.ConnectionEstablishedCallback()
	}

	sub.EndCallbackSync()

	return nil
}

func (sub *Subscriber) resetSessionState() {
	atomic.StoreInt32(&sub.activeIndex, 0)
	atomic.StoreInt32(&sub.timeIndex, 0)
	atomic.StoreInt32(&sub.cipherIndex, 0)
	atomic.StoreUint64(&sub.totalCommandChannelBytesReceived, 0)
	atomic.StoreUint64(&sub.totalDataChannelBytesReceived, 0)

	sub.signalIndexCache[0] = NewSignalIndexCache()
	sub.signalIndexCache[1] = NewSignalIndexCache()

	sub.tsscMutex.Lock()
	sub.tsscDecoder.Reset()
	sub.tsscResetRequested = true
	sub.tsscLastOOSReported = false
	sub.tsscMutex.Unlock()

	sub.bufferBlockMutex.Lock()
	sub.bufferBlockExpected = 0
	sub.bufferBlockCache = make(map[uint32]BufferBlock)
	sub.bufferBlockGapSince = time.Time{}
	sub.bufferBlockMutex.Unlock()
}

// Disconnect tears down the current connection. Idempotent and non-blocking: the actual
// teardown happens on a disconnect worker goroutine so a call from within a callback can
// never deadlock against the reader it is asking to stop.
func (sub *Subscriber) Disconnect() {
	if sub.disposing.IsSet() {
		return
	}

	sub.disposing.Set()

	sub.disconnectMutex.Lock()
	previous := sub.disconnectThread
	sub.disconnectMutex.Unlock()

	worker := thread.NewNamedThread("disconnect", func() {
		if previous != nil {
			previous.Join()
		}

		sub.teardown()
	}, func(name string, recovered any) {
		sub.dispatchErrorMessage(fmt.Sprintf("%s thread panic recovered: %v", name, recovered))
	})

	sub.disconnectMutex.Lock()
	sub.disconnectThread = worker
	sub.disconnectMutex.Unlock()

	worker.Start()
}

func (sub *Subscriber) teardown() {
	sub.connected.UnSet()
	sub.subscribed.UnSet()

	if sub.commandChannel != nil {
		_ = sub.commandChannel.Close()
	}

	if sub.dataChannel != nil {
		_ = sub.dataChannel.Close()
		sub.dataChannel = nil
	}

	sub.failPendingReplies(errors.New("connection closed"))

	pmConnectionsTerminated.Inc()

	sub.BeginCallbackSync()

	if sub.ConnectionTerminatedCallback != nil {
		sub.ConnectionTerminatedCallback()
	}

	sub.EndCallbackSync()

	sub.BeginCallbackSync()
	autoReconnect := sub.AutoReconnectCallback
	sub.EndCallbackSync()

	if autoReconnect != nil {
		sub.disposing.UnSet()
		autoReconnect()
	}
}

// Dispose permanently shuts down the Subscriber; unlike Disconnect, the Subscriber is not
// expected to be reused afterward.
func (sub *Subscriber) Dispose() {
	sub.connector.Cancel()
	sub.Disconnect()

	sub.disconnectMutex.Lock()
	worker := sub.disconnectThread
	sub.disconnectMutex.Unlock()

	if worker != nil {
		worker.Join()
	}
}

func (sub *Subscriber) failPendingReplies(err error) {
	sub.pendingMutex.Lock()
	defer sub.pendingMutex.Unlock()

	for command, ch := range sub.pendingReplies {
		ch <- commandReply{succeeded: false, message: err.Error()}
		delete(sub.pendingReplies, command)
	}
}

// SendServerCommand transmits a command with no payload to the publisher.
func (sub *Subscriber) SendServerCommand(command ServerCommandEnum) error {
	return sub.SendServerCommandWithPayload(command, nil)
}

// SendServerCommandWithPayload transmits a command with the specified payload to the publisher,
// framed as uint8 code, uint32 length, payload.
func (sub *Subscriber) SendServerCommandWithPayload(command ServerCommandEnum, payload []byte) error {
	if !sub.IsConnected() {
		return errors.New("subscriber is not connected")
	}

	buffer := make([]byte, 5+len(payload))
	buffer[0] = byte(command)
	binary.BigEndian.PutUint32(buffer[1:], uint32(len(payload)))
	copy(buffer[5:], payload)

	sub.writeMutex.Lock()
	defer sub.writeMutex.Unlock()

	_, err := sub.commandChannel.Write(buffer)
	return err
}

func (sub *Subscriber) sendOperationalModes() error {
	var modes OperationalModesEnum

	modes |= OperationalModesEnum(sub.Version) & OperationalModes.ServerResponseEnumVersionMask
	modes |= OperationalModesEnum(OperationalEncoding.UTF8)
	modes |= OperationalModes.ServerResponseEnumReceiveInternalMetadata

	if sub.CompressPayloadData {
		modes |= OperationalModes.ServerResponseEnumCompressPayloadData

		// TSSC is a stateful, ordered bit stream and cannot tolerate the packet loss or
		// reordering a UDP data channel allows, so it is only ever negotiated for the
		// ordered, reliable TCP command channel.
		if !sub.subscription.UdpDataChannel {
			modes |= OperationalModesEnum(CompressionModes.TSSC)
		}
	}

	if sub.CompressSignalIndexCache {
		modes |= OperationalModes.ServerResponseEnumCompressSignalIndexCache
	}

	if sub.CompressMetadata {
		modes |= OperationalModes.ServerResponseEnumCompressMetadata
		modes |= OperationalModesEnum(CompressionModes.GZip)
	}

	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, uint32(modes))

	return sub.SendServerCommandWithPayload(ServerCommand.DefineOperationalModes, payload)
}

// RefreshMetadata requests a new metadata snapshot from the publisher, optionally narrowed
// by a filter expression understood by the publisher's metadata provider.
func (sub *Subscriber) RefreshMetadata(filterExpression string) error {
	var payload []byte

	if len(filterExpression) > 0 {
		payload = sub.EncodeString(filterExpression)
	}

	pmMetadataRefreshes.Inc()
	atomic.StoreInt64(&sub.metadataRefreshStartedAt, time.Now().UnixNano())

	if err := sub.SendServerCommandWithPayload(ServerCommand.MetadataRefresh, payload); err != nil {
		pmMetadataRefreshErrors.Inc()
		return err
	}

	return nil
}

// RotateCipherKeys manually requests that the publisher issue a new set of UDP cipher keys.
func (sub *Subscriber) RotateCipherKeys() error {
	return sub.SendServerCommand(ServerCommand.RotateCipherKeys)
}

// UpdateProcessingInterval requests that the publisher change the rate, in milliseconds, at
// which it processes data for this subscription. A value of -1 restores the default rate.
func (sub *Subscriber) UpdateProcessingInterval(milliseconds int32) error {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, uint32(milliseconds))

	return sub.SendServerCommandWithPayload(ServerCommand.UpdateProcessingInterval, payload)
}

// Subscribe encodes the current SubscriptionInfo into a connection string and requests
// a streaming subscription from the publisher.
func (sub *Subscriber) Subscribe() error {
	info := &sub.subscription

	// Operational modes were last negotiated against whatever UdpDataChannel setting was
	// in effect at connect time; if a UDP data channel is being enabled now, TSSC must be
	// withdrawn from the negotiated modes before subscribing.
	if sub.connected.IsSet() && info.UdpDataChannel {
		if err := sub.sendOperationalModes(); err != nil {
			return err
		}
	}

	var parameters strings.Builder

	parameters.WriteString("throttled=")
	parameters.WriteString(strconv.FormatBool(info.Throttled))
	parameters.WriteString(";publishInterval=")
	parameters.WriteString(strconv.FormatFloat(info.PublishInterval, 'f', 6, 64))
	parameters.WriteString(";includeTime=")
	parameters.WriteString(strconv.FormatBool(info.IncludeTime))
	parameters.WriteString(";enableTimeReasonabilityCheck=")
	parameters.WriteString(strconv.FormatBool(info.EnableTimeReasonabilityCheck))

	if info.EnableTimeReasonabilityCheck {
		parameters.WriteString(";lagTime=")
		parameters.WriteString(strconv.FormatFloat(info.LagTime, 'f', 6, 64))
		parameters.WriteString(";leadTime=")
		parameters.WriteString(strconv.FormatFloat(info.LeadTime, 'f', 6, 64))
		parameters.WriteString(";useLocalClockAsRealTime=")
		parameters.WriteString(strconv.FormatBool(info.UseLocalClockAsRealTime))
	}

	parameters.WriteString(";processingInterval=")
	parameters.WriteString(strconv.Itoa(int(info.ProcessingInterval)))
	parameters.WriteString(";useMillisecondResolution=")
	parameters.WriteString(strconv.FormatBool(info.UseMillisecondResolution))
	parameters.WriteString(";requestNaNValueFilter=")
	parameters.WriteString(strconv.FormatBool(info.RequestNaNValueFilter))
	parameters.WriteString(";assemblyInfo={source=")
	parameters.WriteString(Source)
	parameters.WriteString(";version=")
	parameters.WriteString(Version)
	parameters.WriteString(";updatedOn=")
	parameters.WriteString(UpdatedOn)
	parameters.WriteString("}")

	if len(info.FilterExpression) > 0 {
		parameters.WriteString(";filterExpression={")
		parameters.WriteString(info.FilterExpression)
		parameters.WriteString("}")
	}

	var udpPort uint16

	if info.UdpDataChannel {
		udpPort = info.DataChannelLocalPort

		if err := sub.openDataChannel(udpPort); err != nil {
			return err
		}

		parameters.WriteString(";dataChannel={localport=")
		parameters.WriteString(strconv.Itoa(int(udpPort)))
		parameters.WriteString("}")
	}

	if len(info.StartTime) > 0 {
		parameters.WriteString(";startTimeConstraint=")
		parameters.WriteString(info.StartTime)
	}

	if len(info.StopTime) > 0 {
		parameters.WriteString(";stopTimeConstraint=")
		parameters.WriteString(info.StopTime)
	}

	if len(info.ConstraintParameters) > 0 {
		parameters.WriteString(";timeConstraintParameters=")
		parameters.WriteString(info.ConstraintParameters)
	}

	if len(info.ExtraConnectionStringParameters) > 0 {
		parameters.WriteString(";")
		parameters.WriteString(info.ExtraConnectionStringParameters)
	}

	encoded := sub.EncodeString(parameters.String())
	buffer := make([]byte, 5+len(encoded))
	buffer[0] = byte(DataPacketFlags.Compact)
	binary.BigEndian.PutUint32(buffer[1:], uint32(len(encoded)))
	copy(buffer[5:], encoded)

	atomic.StoreUint64(&sub.totalMeasurementsReceived, 0)
	pmSubscribeRequests.Inc()
	started := time.Now()

	err := sub.SendServerCommandWithPayload(ServerCommand.Subscribe, buffer)

	pmSubscribeDurations.Observe(time.Since(started).Seconds())

	return err
}

func (sub *Subscriber) openDataChannel(localPort uint16) error {
	addr := &net.UDPAddr{Port: int(localPort)}
	conn, err := net.ListenUDP("udp", addr)

	if err != nil {
		return fmt.Errorf("failed to open UDP data channel: %w", err)
	}

	sub.dataChannel = conn

	go sub.runDataChannel()

	return nil
}

// Unsubscribe requests that the publisher stop streaming data.
func (sub *Subscriber) Unsubscribe() error {
	sub.subscribed.UnSet()
	return sub.SendServerCommand(ServerCommand.Unsubscribe)
}

func (sub *Subscriber) runCommandChannel() {
	for sub.connected.IsSet() {
		header := make([]byte, 6)

		if _, err := io.ReadFull(sub.commandReader, header); err != nil {
			if sub.disposing.IsNotSet() {
				sub.dispatchErrorMessage("command channel read failed: " + err.Error())
				sub.Disconnect()
			}

			return
		}

		atomic.AddUint64(&sub.totalCommandChannelBytesReceived, uint64(len(header)))

		responseCode := ServerResponseEnum(header[0])
		originalCommand := ServerCommandEnum(header[1])
		payloadLength := binary.BigEndian.Uint32(header[2:])

		if payloadLength > sub.MaxFrameSize {
			sub.dispatchErrorMessage(fmt.Sprintf("fatal: response payload of %d bytes exceeds maximum frame size of %d bytes", payloadLength, sub.MaxFrameSize))
			sub.Disconnect()
			return
		}

		payload := make([]byte, payloadLength)

		if payloadLength > 0 {
			if _, err := io.ReadFull(sub.commandReader, payload); err != nil {
				if sub.disposing.IsNotSet() {
					sub.dispatchErrorMessage("command channel read failed: " + err.Error())
					sub.Disconnect()
				}

				return
			}

			atomic.AddUint64(&sub.totalCommandChannelBytesReceived, uint64(payloadLength))
		}

		sub.processServerResponse(responseCode, originalCommand, payload)
	}
}

func (sub *Subscriber) runDataChannel() {
	buffer := make([]byte, 65536)

	for sub.connected.IsSet() {
		n, _, err := sub.dataChannel.ReadFromUDP(buffer)

		if err != nil {
			return
		}

		atomic.AddUint64(&sub.totalDataChannelBytesReceived, uint64(n))

		packet := make([]byte, n)
		copy(packet, buffer[:n])

		if err := sub.handleDataPacket(packet, true); err != nil {
			pmDecodeErrors.Inc()
			sub.dispatchErrorMessage("failed to decode UDP data packet: " + err.Error())
		}
	}
}

//gocyclo:ignore
func (sub *Subscriber) processServerResponse(responseCode ServerResponseEnum, originalCommand ServerCommandEnum, payload []byte) {
	switch responseCode {
	case ServerResponse.Succeeded:
		sub.resolvePendingReply(originalCommand, commandReply{succeeded: true, message: sub.DecodeString(payload)})

		if originalCommand == ServerCommand.Subscribe {
			sub.subscribed.Set()
		}

		if originalCommand == ServerCommand.MetadataRefresh {
			sub.handleMetadataRefreshSucceeded(payload)
		}
	case ServerResponse.Failed:
		if originalCommand == ServerCommand.Subscribe {
			pmSubscribeFailures.Inc()
		}

		if originalCommand == ServerCommand.MetadataRefresh {
			pmMetadataRefreshErrors.Inc()
		}

		sub.resolvePendingReply(originalCommand, commandReply{succeeded: false, message: sub.DecodeString(payload)})
		sub.dispatchErrorMessage("command " + strconv.Itoa(int(originalCommand)) + " failed: " + sub.DecodeString(payload))
	case ServerResponse.DataPacket:
		if err := sub.handleDataPacket(payload, false); err != nil {
			pmDecodeErrors.Inc()
			sub.dispatchErrorMessage("failed to decode data packet: " + err.Error())
		}
	case ServerResponse.UpdateSignalIndexCache:
		sub.handleUpdateSignalIndexCache(payload)
	case ServerResponse.UpdateBaseTimes:
		sub.handleUpdateBaseTimes(payload)
	case ServerResponse.UpdateCipherKeys:
		sub.handleUpdateCipherKeys(payload)
	case ServerResponse.DataStartTime:
		if len(payload) >= 8 {
			startTime := ticks.Ticks(binary.BigEndian.Uint64(payload))

			sub.BeginCallbackSync()

			if sub.DataStartTimeCallback != nil {
				sub.DataStartTimeCallback(startTime)
			}

			sub.EndCallbackSync()
		}
	case ServerResponse.ProcessingComplete:
		message := sub.DecodeString(payload)

		sub.BeginCallbackSync()

		if sub.ProcessingCompleteCallback != nil {
			sub.ProcessingCompleteCallback(message)
		}

		sub.EndCallbackSync()
	case ServerResponse.BufferBlock:
		sub.handleBufferBlock(payload)
	case ServerResponse.Notify:
		message := sub.DecodeString(payload)

		sub.BeginCallbackSync()

		if sub.NotificationReceivedCallback != nil {
			sub.NotificationReceivedCallback(message)
		}

		sub.EndCallbackSync()

		_ = sub.SendServerCommandWithPayload(ServerCommand.ConfirmNotification, payload)
	case ServerResponse.ConfigurationChanged:
		sub.BeginCallbackSync()

		if sub.ConfigurationChangedCallback != nil {
			sub.ConfigurationChangedCallback()
		}

		sub.EndCallbackSync()
	case ServerResponse.NoOP:
		// Silent keep-alive; no reply.
	}
}

func (sub *Subscriber) resolvePendingReply(command ServerCommandEnum, reply commandReply) {
	sub.pendingMutex.Lock()
	ch, ok := sub.pendingReplies[command]

	if ok {
		delete(sub.pendingReplies, command)
	}

	sub.pendingMutex.Unlock()

	if ok {
		ch <- reply
	}
}

func (sub *Subscriber) handleMetadataRefreshSucceeded(payload []byte) {
	started := atomic.LoadInt64(&sub.metadataRefreshStartedAt)

	if started > 0 {
		pmMetadataRefreshDurations.Observe(time.Since(time.Unix(0, started)).Seconds())
	}

	pmMetadataRefreshPayloadSizes.Observe(float64(len(payload)))

	data := payload

	if sub.CompressMetadata {
		if decompressed, err := decompressGZip(payload); err == nil {
			data = decompressed
		}
	}

	sub.BeginCallbackSync()

	if sub.MetadataReceivedCallback != nil {
		sub.MetadataReceivedCallback(data)
	}

	sub.EndCallbackSync()
}

func (sub *Subscriber) handleUpdateSignalIndexCache(payload []byte) {
	activeIndex := atomic.LoadInt32(&sub.activeIndex)
	inactiveIndex := 1 - activeIndex

	if sub.CompressSignalIndexCache {
		if decompressed, err := decompressGZip(payload); err == nil {
			payload = decompressed
		}
	}

	cache := NewSignalIndexCache()
	var subscriberID guid.Guid

	if err := cache.decode(sub, payload, &subscriberID); err != nil {
		pmDecodeErrors.Inc()
		sub.dispatchErrorMessage("failed to parse signal index cache: " + err.Error())
		return
	}

	sub.signalIndexCache[inactiveIndex] = cache
	sub.subscriberID = subscriberID

	_ = sub.SendServerCommand(ServerCommand.ConfirmSignalIndexCache)

	atomic.StoreInt32(&sub.activeIndex, inactiveIndex)

	sub.BeginCallbackSync()

	if sub.SubscriptionUpdatedCallback != nil {
		sub.SubscriptionUpdatedCallback(cache)
	}

	sub.EndCallbackSync()
}

func (sub *Subscriber) handleUpdateBaseTimes(payload []byte) {
	if len(payload) < 20 {
		sub.dispatchErrorMessage("received malformed UpdateBaseTimes response")
		return
	}

	newTimeIndex := int32(binary.BigEndian.Uint32(payload))
	b0 := int64(binary.BigEndian.Uint64(payload[4:]))
	b1 := int64(binary.BigEndian.Uint64(payload[12:]))

	atomic.StoreInt64(&sub.baseTimeOffsets[0], b0)
	atomic.StoreInt64(&sub.baseTimeOffsets[1], b1)
	atomic.StoreInt32(&sub.timeIndex, newTimeIndex)

	_ = sub.SendServerCommand(ServerCommand.ConfirmUpdateBaseTimes)
}

func (sub *Subscriber) handleUpdateCipherKeys(payload []byte) {
	if len(payload) < 2 {
		return
	}

	offset := 0
	cipherIndex := payload[offset]
	offset++

	for i := 0; i < 2; i++ {
		if len(payload) < offset+4 {
			return
		}

		keyLength := int(binary.BigEndian.Uint32(payload[offset:]))
		offset += 4

		if len(payload) < offset+keyLength {
			return
		}

		key := payload[offset : offset+keyLength]
		offset += keyLength

		if len(payload) < offset+4 {
			return
		}

		ivLength := int(binary.BigEndian.Uint32(payload[offset:]))
		offset += 4

		if len(payload) < offset+ivLength {
			return
		}

		iv := payload[offset : offset+ivLength]
		offset += ivLength

		sub.cipherKeys[i] = cipherKeyPair{key: append([]byte(nil), key...), iv: append([]byte(nil), iv...)}
	}

	atomic.StoreInt32(&sub.cipherIndex, int32(cipherIndex))
}

// bufferBlockGapTimeout returns the configured buffer-block gap timeout, falling back to
// defaultBufferBlockGapTimeout when unset.
func (sub *Subscriber) bufferBlockGapTimeout() time.Duration {
	if sub.BufferBlockGapTimeout > 0 {
		return sub.BufferBlockGapTimeout
	}

	return defaultBufferBlockGapTimeout
}

// oldestCachedBufferBlockSequence returns the lowest sequence number held in the buffer-block
// reorder cache, or bufferBlockExpected if the cache is empty. Must be called with
// bufferBlockMutex held.
func (sub *Subscriber) oldestCachedBufferBlockSequence() uint32 {
	oldest := sub.bufferBlockExpected
	found := false

	for sequence := range sub.bufferBlockCache {
		if !found || sequence < oldest {
			oldest = sequence
			found = true
		}
	}

	if !found {
		return sub.bufferBlockExpected
	}

	return oldest
}

func (sub *Subscriber) handleBufferBlock(payload []byte) {
	if len(payload) < 6 {
		return
	}

	sequenceNumber := binary.BigEndian.Uint32(payload)
	signalIndex := binary.BigEndian.Uint16(payload[4:])
	buffer := append([]byte(nil), payload[6:]...)

	cache := sub.ActiveSignalIndexCache()
	signalID := cache.SignalID(int32(signalIndex))

	block := BufferBlock{SignalID: signalID, Buffer: buffer}

	_ = sub.SendServerCommandWithPayload(ServerCommand.ConfirmBufferBlock, payload[:4])

	sub.bufferBlockMutex.Lock()

	ready := make([]BufferBlock, 0, 1)
	var gapWarning string

	if sequenceNumber == sub.bufferBlockExpected {
		ready = append(ready, block)
		sub.bufferBlockExpected++
		sub.bufferBlockGapSince = time.Time{}

		for {
			next, ok := sub.bufferBlockCache[sub.bufferBlockExpected]

			if !ok {
				break
			}

			ready = append(ready, next)
			delete(sub.bufferBlockCache, sub.bufferBlockExpected)
			sub.bufferBlockExpected++
		}
	} else if sequenceNumber > sub.bufferBlockExpected {
		sub.bufferBlockCache[sequenceNumber] = block

		if sub.bufferBlockGapSince.IsZero() {
			sub.bufferBlockGapSince = time.Now()
		} else if time.Since(sub.bufferBlockGapSince) > sub.bufferBlockGapTimeout() {
			skipped := sub.bufferBlockExpected
			sub.bufferBlockExpected = sub.oldestCachedBufferBlockSequence()

			for {
				next, ok := sub.bufferBlockCache[sub.bufferBlockExpected]

				if !ok {
					break
				}

				ready = append(ready, next)
				delete(sub.bufferBlockCache, sub.bufferBlockExpected)
				sub.bufferBlockExpected++
			}

			sub.bufferBlockGapSince = time.Time{}
			gapWarning = fmt.Sprintf("buffer block gap at sequence %d exceeded timeout; skipped ahead to %d", skipped, sub.bufferBlockExpected)
		}
	}

	sub.bufferBlockMutex.Unlock()

	if len(gapWarning) > 0 {
		sub.dispatchErrorMessage(gapWarning)
	}

	if len(ready) == 0 {
		return
	}

	pmBufferBlocksReceived.Add(float64(len(ready)))

	sub.BeginCallbackSync()

	if sub.NewBufferBlocksCallback != nil {
		sub.NewBufferBlocksCallback(ready)
	}

	sub.EndCallbackSync()
}

// handleDataPacket decodes a data-packet envelope (flags byte, payload length, compact or
// TSSC payload) received on either the command channel (TCP) or the data channel (UDP).
func (sub *Subscriber) handleDataPacket(payload []byte, fromUDP bool) error {
	if len(payload) < 5 {
		return errors.New("empty data packet")
	}

	flags := DataPacketFlagsEnum(payload[0])

	payloadLength, err := wire.ReadU32(payload, 1)

	if err != nil {
		return fmt.Errorf("failed to parse data packet payload length: %w", err)
	}

	if int(payloadLength) != len(payload)-5 {
		return fmt.Errorf("data packet payload length mismatch: header reports %d, buffer has %d", payloadLength, len(payload)-5)
	}

	body := payload[5:]

	if fromUDP {
		cipherIndex := 0

		if (flags & DataPacketFlags.CipherIndex) != 0 {
			cipherIndex = 1
		}

		pair := sub.cipherKeys[cipherIndex]

		if len(pair.key) > 0 {
			deciphered, err := decipherAES(pair.key, pair.iv, body)

			if err != nil {
				return fmt.Errorf("failed to decipher data packet: %w", err)
			}

			body = deciphered
		}
	}

	cacheIndex := 0

	if (flags & DataPacketFlags.CacheIndex) != 0 {
		cacheIndex = 1
	}

	cache := sub.signalIndexCache[cacheIndex]

	var measurements []Measurement

	if (flags & DataPacketFlags.Compressed) != 0 {
		measurements, err = sub.decodeTSSCMeasurements(body, cache)
	} else {
		measurements, err = sub.decodeCompactMeasurements(body, cache)
	}

	if err != nil {
		return err
	}

	if len(measurements) == 0 {
		return nil
	}

	atomic.AddUint64(&sub.totalMeasurementsReceived, uint64(len(measurements)))
	pmMeasurementsReceived.Add(float64(len(measurements)))

	sub.BeginCallbackSync()

	if sub.NewMeasurementsCallback != nil {
		sub.NewMeasurementsCallback(measurements)
	}

	sub.EndCallbackSync()

	return nil
}

func (sub *Subscriber) decodeCompactMeasurements(body []byte, cache *SignalIndexCache) ([]Measurement, error) {
	info := &sub.subscription
	offset := 0

	var baseTimeOffsets [2]int64
	baseTimeOffsets[0] = atomic.LoadInt64(&sub.baseTimeOffsets[0])
	baseTimeOffsets[1] = atomic.LoadInt64(&sub.baseTimeOffsets[1])

	measurements := make([]Measurement, 0, len(body)/12)

	for offset < len(body) {
		cm, consumed, err := NewCompactMeasurement(info.IncludeTime, info.UseMillisecondResolution, &baseTimeOffsets, body[offset:])

		if err != nil {
			return measurements, err
		}

		if consumed == 0 {
			break
		}

		measurements = append(measurements, cm.Expand(cache))
		offset += consumed
	}

	return measurements, nil
}

func (sub *Subscriber) decodeTSSCMeasurements(body []byte, cache *SignalIndexCache) ([]Measurement, error) {
	sub.tsscMutex.Lock()
	defer sub.tsscMutex.Unlock()

	if sub.tsscResetRequested {
		sub.tsscDecoder.Reset()
		sub.tsscResetRequested = false
	}

	sequenceNumber := binary.BigEndian.Uint16(body)

	if sequenceNumber != sub.tsscDecoder.SequenceNumber {
		if !sub.tsscLastOOSReported {
			sub.dispatchErrorMessage(fmt.Sprintf("TSSC sequence number out of order, expected %d but received %d; decoder reset", sub.tsscDecoder.SequenceNumber, sequenceNumber))
			sub.tsscLastOOSReported = true
		}

		sub.tsscDecoder.Reset()
	} else {
		sub.tsscLastOOSReported = false
	}

	sub.tsscDecoder.SetBuffer(body[2:])
	sub.tsscDecoder.SequenceNumber = sequenceNumber + 1

	measurements := make([]Measurement, 0, 64)

	for {
		var id int32
		var timestamp int64
		var stateFlags uint32
		var value float32

		ok, err := sub.tsscDecoder.TryGetMeasurement(&id, &timestamp, &stateFlags, &value)

		if err != nil {
			return measurements, err
		}

		if !ok {
			break
		}

		measurements = append(measurements, Measurement{
			SignalID:  cache.SignalID(id),
			Timestamp: ticks.Ticks(timestamp),
			Value:     float64(value),
			Flags:     StateFlagsEnum(stateFlags),
		})
	}

	return measurements, nil
}
