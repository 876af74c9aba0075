//******************************************************************************************************
//  Client.go - Gbtc
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

package sttpc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gridstream-io/sttp-go/format"
	"github.com/gridstream-io/sttp-go/guid"
	"github.com/gridstream-io/sttp-go/metadata"
	"github.com/gridstream-io/sttp-go/session"
	"github.com/gridstream-io/sttp-go/ticks"
)

// Client represents an STTP data subscriber.
//
// Client exists as a simplified implementation of the Subscriber found in the session
// package. Client is intended to simplify common uses of STTP data reception and maintains
// an internal instance of the session Subscriber for subscription based functionality.
type Client struct {
	// Configuration reference
	config *Config

	// Subscriber reference
	sub *session.Subscriber

	// Callback references
	statusMessageLogger            func(message string)
	errorMessageLogger             func(message string)
	metadataReceiver               func(dataSet *metadata.DataSet)
	dataStartTimeReceiver          func(startTime time.Time)
	configurationChangedReceiver   func()
	historicalReadCompleteReceiver func()
	connectionEstablishedReceiver  func()

	// Lock used to synchronize console writes
	consoleLock sync.Mutex

	assigningHandlerMutex sync.RWMutex
}

// NewClient creates a new Client.
func NewClient() *Client {
	client := Client{
		config: NewConfig(),
		sub:    session.NewSubscriber(),
	}
	client.statusMessageLogger = client.DefaultStatusMessageLogger
	client.errorMessageLogger = client.DefaultErrorMessageLogger
	client.connectionEstablishedReceiver = client.DefaultConnectionEstablishedReceiver
	client.sub.ConnectionTerminatedCallback = client.DefaultConnectionTerminatedReceiver
	return &client
}

// Close cleanly shuts down a Client that is no longer being used, e.g.,
// during a normal application exit.
func (client *Client) Close() {
	if client.sub != nil {
		client.sub.Dispose()
	}
}

// subscriber gets a reference to the internal session Subscriber instance.
func (client *Client) subscriber() *session.Subscriber {
	if client.sub == nil {
		panic("Internal Subscriber instance has not been initialized. Make sure to use NewClient.")
	}

	return client.sub
}

// IsConnected determines if Client is currently connected to a data publisher.
func (client *Client) IsConnected() bool {
	return client.subscriber().IsConnected()
}

// IsSubscribed determines if Client is currently subscribed to a data stream.
func (client *Client) IsSubscribed() bool {
	return client.subscriber().IsSubscribed()
}

// ActiveSignalIndexCache gets the active signal index cache.
func (client *Client) ActiveSignalIndexCache() *session.SignalIndexCache {
	return client.subscriber().ActiveSignalIndexCache()
}

// SubscriberID gets the subscriber ID as assigned by the data publisher upon receipt of the SignalIndexCache.
func (client *Client) SubscriberID() guid.Guid {
	return client.subscriber().SubscriberID()
}

// TotalCommandChannelBytesReceived gets the total number of bytes received via the command channel since last connection.
func (client *Client) TotalCommandChannelBytesReceived() uint64 {
	return client.subscriber().TotalCommandChannelBytesReceived()
}

// TotalDataChannelBytesReceived gets the total number of bytes received via the data channel since last connection.
func (client *Client) TotalDataChannelBytesReceived() uint64 {
	return client.subscriber().TotalDataChannelBytesReceived()
}

// TotalMeasurementsReceived gets the total number of measurements received since last subscription.
func (client *Client) TotalMeasurementsReceived() uint64 {
	return client.subscriber().TotalMeasurementsReceived()
}

// LookupMetadata gets the MeasurementMetadata for the specified signalID from the local
// registry. If the metadata does not exist, a new record is created and returned.
func (client *Client) LookupMetadata(signalID guid.Guid) *session.MeasurementMetadata {
	return client.subscriber().LookupMetadata(signalID)
}

// Metadata gets the measurement-level metadata associated with a measurement from the local
// registry. If the metadata does not exist, a new record is created and returned.
func (client *Client) Metadata(measurement *session.Measurement) *session.MeasurementMetadata {
	return client.subscriber().Metadata(measurement)
}

// AdjustedValue gets the Value of a Measurement with any linear adjustments applied from the
// measurement's Adder and Multiplier metadata, if found.
func (client *Client) AdjustedValue(measurement *session.Measurement) float64 {
	return client.subscriber().AdjustedValue(measurement)
}

// Dial starts the client-based connection cycle to an STTP publisher. Config parameter controls
// connection related settings, set value to nil for default values. When the config defines
// AutoReconnect as true, the connection will automatically be retried when the connection drops.
// If the config defines AutoRequestMetadata as true, then upon successful connection, meta-data
// will be requested. When the config defines both AutoRequestMetadata and AutoSubscribe as true,
// subscription will occur after reception of metadata. When the config defines AutoRequestMetadata
// as false and AutoSubscribe as true, subscription will occur at successful connection.
func (client *Client) Dial(address string, config *Config) error {
	hostname, portname, err := net.SplitHostPort(address)

	if err != nil {
		return err
	}

	port, err := strconv.Atoi(portname)

	if err != nil {
		return fmt.Errorf("invalid port number \"%s\": %s", portname, err.Error())
	}

	if port < 1 || port > math.MaxUint16 {
		return fmt.Errorf("port number \"%s\" is out of range: must be 1 to %d", portname, math.MaxUint16)
	}

	if config != nil {
		client.config = config
	}

	return client.connect(hostname, uint16(port))
}

func (client *Client) connect(hostname string, port uint16) error {
	if client.config == nil {
		panic("Internal Config instance has not been initialized. Make sure to use NewClient.")
	}

	sub := client.subscriber()
	con := sub.Connector()

	// Set connection properties
	con.Hostname = hostname
	con.Port = port

	con.MaxRetries = client.config.MaxRetries
	con.RetryInterval = client.config.RetryInterval
	con.MaxRetryInterval = client.config.MaxRetryInterval
	con.AutoReconnect = client.config.AutoReconnect

	sub.CompressPayloadData = client.config.CompressPayloadData
	sub.CompressMetadata = client.config.CompressMetadata
	sub.CompressSignalIndexCache = client.config.CompressSignalIndexCache
	sub.Version = client.config.Version
	sub.SwapGuidEndianness = !client.config.RfcGuidEncoding

	con.BeginCallbackAssignment()
	sub.BeginCallbackAssignment()
	client.beginCallbackSync()

	// Register direct Client callbacks
	con.ErrorMessageCallback = client.errorMessageLogger
	sub.StatusMessageCallback = client.statusMessageLogger
	sub.ErrorMessageCallback = client.errorMessageLogger

	// Register callbacks with intermediate handlers
	con.ReconnectCallback = client.handleReconnect
	sub.MetadataReceivedCallback = client.handleMetadataReceived
	sub.DataStartTimeCallback = client.handleDataStartTime
	sub.ConfigurationChangedCallback = client.handleConfigurationChanged
	sub.ProcessingCompleteCallback = client.handleProcessingComplete

	client.endCallbackSync()
	con.EndCallbackAssignment()
	sub.EndCallbackAssignment()

	var err error

	// Connect and subscribe to publisher
	switch con.Connect(sub) {
	case session.ConnectStatus.Success:
		client.beginCallbackSync()

		if client.connectionEstablishedReceiver != nil {
			client.connectionEstablishedReceiver()
		}

		client.endCallbackSync()

		// If automatically parsing metadata, request metadata upon successful connection,
		// after metadata is received the Client will then initiate subscribe; otherwise,
		// subscribe is initiated immediately (when auto subscribe requested)
		if client.config.AutoRequestMetadata {
			client.RequestMetadata()
		} else if client.config.AutoSubscribe {
			sub.Subscribe()
		}
	case session.ConnectStatus.Failed:
		err = errors.New("All connection attempts failed")
	case session.ConnectStatus.Canceled:
		err = errors.New("Connection canceled")
	}

	return err
}

// Disconnect disconnects from an STTP publisher.
func (client *Client) Disconnect() {
	client.subscriber().Disconnect()
}

// RequestMetadata sends a request to the data publisher indicating that the Client would
// like new metadata. Any defined MetadataFilters will be included in request.
func (client *Client) RequestMetadata() {
	sub := client.subscriber()

	if len(client.config.MetadataFilters) == 0 {
		sub.SendServerCommand(session.ServerCommand.MetadataRefresh)
		return
	}

	filters := sub.EncodeString(client.config.MetadataFilters)
	buffer := make([]byte, 4+len(filters))

	binary.BigEndian.PutUint32(buffer, uint32(len(filters)))
	copy(buffer[4:], filters)

	sub.SendServerCommandWithPayload(session.ServerCommand.MetadataRefresh, buffer)
}

// Subscribe sets up a request indicating that the Client would like to start receiving
// streaming data from a data publisher. If the client is already connected, the updated
// filter expression and subscription settings will be requested immediately; otherwise, the
// settings will be used when the connection to the data publisher is established.
//
// The filterExpression defines the desired measurements for a subscription. Examples include:
//
// * Directly specified signal IDs (UUID values in string format):
//     38A47B0-F10B-4143-9A0A-0DBC4FFEF1E8; E4BBFE6A-35BD-4E5B-92C9-11FF913E7877
//
// * Directly specified tag names:
//     DOM_GPLAINS-BUS1:VH; TVA_SHELBY-BUS1:VH
//
// * Directly specified identifiers in "measurement key" format:
//     PPA:15; STAT:20
//
// * A filter expression against a selection view:
//     FILTER ActiveMeasurements WHERE Company='GPA' AND SignalType='FREQ'
//
// Settings parameter controls subscription related settings, set value to nil for default values.
func (client *Client) Subscribe(filterExpression string, settings *Settings) {
	sub := client.subscriber()
	info := sub.Subscription()

	if settings == nil {
		settings = &settingsDefaults
	}

	info.FilterExpression = filterExpression
	info.Throttled = settings.Throttled
	info.PublishInterval = settings.PublishInterval

	if settings.UdpPort > 0 {
		info.UdpDataChannel = true
		info.DataChannelLocalPort = settings.UdpPort
	} else {
		info.UdpDataChannel = false
		info.DataChannelLocalPort = 0
	}

	info.IncludeTime = settings.IncludeTime
	info.EnableTimeReasonabilityCheck = settings.EnableTimeReasonabilityCheck
	info.LagTime = settings.LagTime
	info.LeadTime = settings.LeadTime
	info.UseLocalClockAsRealTime = settings.UseLocalClockAsRealTime
	info.UseMillisecondResolution = settings.UseMillisecondResolution
	info.RequestNaNValueFilter = settings.RequestNaNValueFilter
	info.StartTime = settings.StartTime
	info.StopTime = settings.StopTime
	info.ConstraintParameters = settings.ConstraintParameters
	info.ProcessingInterval = settings.ProcessingInterval
	info.ExtraConnectionStringParameters = settings.ExtraConnectionStringParameters

	if sub.IsConnected() {
		sub.Subscribe()
	}
}

// Unsubscribe sends a request to the data publisher indicating that the Client would
// like to stop receiving streaming data.
func (client *Client) Unsubscribe() {
	client.subscriber().Unsubscribe()
}

// ReadMeasurements sets up a new MeasurementReader to start reading measurements.
func (client *Client) ReadMeasurements() *MeasurementReader {
	return newMeasurementReader(client)
}

// beginCallbackAssignment informs Client that a callback change has been initiated.
func (client *Client) beginCallbackAssignment() {
	client.assigningHandlerMutex.Lock()
}

// beginCallbackSync begins a callback synchronization operation.
func (client *Client) beginCallbackSync() {
	client.assigningHandlerMutex.RLock()
}

// endCallbackSync ends a callback synchronization operation.
func (client *Client) endCallbackSync() {
	client.assigningHandlerMutex.RUnlock()
}

// endCallbackAssignment informs Client that a callback change has been completed.
func (client *Client) endCallbackAssignment() {
	client.assigningHandlerMutex.Unlock()
}

// Local callback handlers:

// StatusMessage executes the defined status message logger callback.
func (client *Client) StatusMessage(message string) {
	client.beginCallbackSync()

	if client.statusMessageLogger != nil {
		client.statusMessageLogger(message)
	}

	client.endCallbackSync()
}

// ErrorMessage executes the defined error message logger callback.
func (client *Client) ErrorMessage(message string) {
	client.beginCallbackSync()

	if client.errorMessageLogger != nil {
		client.errorMessageLogger(message)
	}

	client.endCallbackSync()
}

// Intermediate callback handlers:

func (client *Client) handleReconnect(sub *session.Subscriber) {
	if sub.IsConnected() {
		client.beginCallbackSync()

		if client.connectionEstablishedReceiver != nil {
			client.connectionEstablishedReceiver()
		}

		client.endCallbackSync()

		// If automatically parsing metadata, request metadata upon successful connection,
		// after metadata is received the Client will then initiate subscribe; otherwise,
		// subscribe is initiated immediately (when auto subscribe requested)
		if client.config.AutoRequestMetadata {
			client.RequestMetadata()
		} else if client.config.AutoSubscribe {
			sub.Subscribe()
		}
	} else {
		sub.Disconnect()
		client.StatusMessage("Connection retry attempts exceeded.")
	}
}

func (client *Client) handleMetadataReceived(payload []byte) {
	parseStarted := time.Now()
	dataSet := metadata.NewDataSet()
	err := dataSet.ParseXml(payload)

	if err == nil {
		client.loadMeasurementMetadata(dataSet)
	} else {
		client.ErrorMessage("Failed to parse received XML metadata: " + err.Error())
	}

	client.showMetadataSummary(dataSet, parseStarted)

	client.beginCallbackSync()

	if client.metadataReceiver != nil {
		client.metadataReceiver(dataSet)
	}

	client.endCallbackSync()

	if client.config.AutoRequestMetadata && client.config.AutoSubscribe {
		client.subscriber().Subscribe()
	}
}

func (client *Client) loadMeasurementMetadata(dataSet *metadata.DataSet) {
	measurements := dataSet.Table("MeasurementDetail")

	if measurements == nil {
		client.ErrorMessage("Received metadata does not contain the required MeasurementDetail table")
		return
	}

	signalIDIndex := measurements.ColumnIndex("SignalID")

	if signalIDIndex < 0 {
		client.ErrorMessage("Received metadata does not contain the required MeasurementDetail.SignalID field")
		return
	}

	idIndex := measurements.ColumnIndex("ID")
	pointTagIndex := measurements.ColumnIndex("PointTag")
	signalRefIndex := measurements.ColumnIndex("SignalReference")
	signalTypeIndex := measurements.ColumnIndex("SignalAcronym")
	descriptionIndex := measurements.ColumnIndex("Description")
	updatedOnIndex := measurements.ColumnIndex("UpdatedOn")
	sub := client.subscriber()

	for i := 0; i < measurements.RowCount(); i++ {
		row := measurements.Row(i)

		if row == nil {
			continue
		}

		signalID, err := row.ValueAsGuid(signalIDIndex)

		if err != nil {
			continue
		}

		measurementMetadata := sub.LookupMetadata(signalID)

		if idIndex > -1 {
			id, _ := row.ValueAsString(idIndex)
			parts := strings.Split(id, ":")

			if len(parts) == 2 {
				measurementMetadata.Source = parts[0]
				measurementMetadata.ID, _ = strconv.ParseUint(parts[1], 10, 64)
			}
		}

		if pointTagIndex > -1 {
			measurementMetadata.Tag, _ = row.ValueAsString(pointTagIndex)
		}

		if signalRefIndex > -1 {
			measurementMetadata.SignalReference, _ = row.ValueAsString(signalRefIndex)
		}

		if signalTypeIndex > -1 {
			measurementMetadata.SignalType, _ = row.ValueAsString(signalTypeIndex)
		}

		if descriptionIndex > -1 {
			measurementMetadata.Description, _ = row.ValueAsString(descriptionIndex)
		}

		if updatedOnIndex > -1 {
			measurementMetadata.UpdatedOn, _ = row.ValueAsDateTime(updatedOnIndex)
		}
	}
}

func (client *Client) showMetadataSummary(dataSet *metadata.DataSet, parseStarted time.Time) {
	getRowCount := func(tableName string) int {
		table := dataSet.Table(tableName)

		if table == nil {
			return 0
		}

		return table.RowCount()
	}

	var tableDetails strings.Builder
	totalRows := 0

	tableDetails.WriteString("    Discovered:\n")

	for _, table := range dataSet.Tables() {
		tableName := table.Name()
		tableRows := getRowCount(tableName)
		totalRows += tableRows
		tableDetails.WriteString(fmt.Sprintf("        %s %s records\n", format.Int(tableRows), tableName))
	}

	var message strings.Builder

	message.WriteString("Parsed ")
	message.WriteString(format.Int(totalRows))
	message.WriteString(" metadata records in ")
	message.WriteString(format.Float(time.Since(parseStarted).Seconds(), 3))
	message.WriteString(" seconds.\n")
	message.WriteString(tableDetails.String())

	schemaVersion := dataSet.Table("SchemaVersion")

	if schemaVersion != nil {
		message.WriteString("Metadata schema version: " + schemaVersion.GetRowValueByName(0, "VersionNumber"))
	} else {
		message.WriteString("No SchemaVersion table found in metadata")
	}

	client.StatusMessage(message.String())
}

func (client *Client) handleDataStartTime(startTime ticks.Ticks) {
	client.beginCallbackSync()

	if client.dataStartTimeReceiver != nil {
		client.dataStartTimeReceiver(startTime.ToTime())
	}

	client.endCallbackSync()
}

func (client *Client) handleConfigurationChanged() {
	client.beginCallbackSync()

	if client.configurationChangedReceiver != nil {
		client.configurationChangedReceiver()
	}

	client.endCallbackSync()

	if client.config.AutoRequestMetadata {
		client.RequestMetadata()
	}
}

func (client *Client) handleProcessingComplete(message string) {
	client.StatusMessage(message)

	client.beginCallbackSync()

	if client.historicalReadCompleteReceiver != nil {
		client.historicalReadCompleteReceiver()
	}

	client.endCallbackSync()
}

// DefaultStatusMessageLogger implements the default handler for the statusMessage callback.
// Default implementation synchronously writes output to stdio. Logging is recommended.
func (client *Client) DefaultStatusMessageLogger(message string) {
	client.consoleLock.Lock()
	defer client.consoleLock.Unlock()
	fmt.Println(message)
}

// DefaultErrorMessageLogger implements the default handler for the errorMessage callback.
// Default implementation synchronously writes output to to stderr. Logging is recommended.
func (client *Client) DefaultErrorMessageLogger(message string) {
	client.consoleLock.Lock()
	defer client.consoleLock.Unlock()
	fmt.Fprintln(os.Stderr, message)
}

// DefaultConnectionEstablishedReceiver implements the default handler for the ConnectionEstablished callback.
// Default implementation simply writes connection feedback to statusMessage callback.
func (client *Client) DefaultConnectionEstablishedReceiver() {
	con := client.subscriber().Connector()
	client.StatusMessage("Connection to " + con.Hostname + ":" + strconv.Itoa(int(con.Port)) + " established.")
}

// DefaultConnectionTerminatedReceiver implements the default handler for the ConnectionTerminated callback.
// Default implementation simply writes connection terminated feedback to errorMessage callback.
func (client *Client) DefaultConnectionTerminatedReceiver() {
	con := client.subscriber().Connector()
	client.ErrorMessage("Connection to " + con.Hostname + ":" + strconv.Itoa(int(con.Port)) + " terminated.")
}

// SetStatusMessageLogger defines the callback that handles informational message logging.
// Assignment will take effect immediately, even while subscription is active.
func (client *Client) SetStatusMessageLogger(callback func(message string)) {
	client.beginCallbackAssignment()
	defer client.endCallbackAssignment()

	client.statusMessageLogger = callback
}

// SetErrorMessageLogger defines the callback that handles error message logging.
// Assignment will take effect immediately, even while subscription is active.
func (client *Client) SetErrorMessageLogger(callback func(message string)) {
	client.beginCallbackAssignment()
	defer client.endCallbackAssignment()

	client.errorMessageLogger = callback
}

// SetMetadataReceiver defines the callback that handles reception of the metadata response.
// Assignment will take effect immediately, even while subscription is active.
func (client *Client) SetMetadataReceiver(callback func(dataSet *metadata.DataSet)) {
	client.beginCallbackAssignment()
	defer client.endCallbackAssignment()

	client.metadataReceiver = callback
}

// SetSubscriptionUpdatedReceiver defines the callback that handles notifications that a new
// SignalIndexCache has been received.
// Assignment will take effect immediately, even while subscription is active.
func (client *Client) SetSubscriptionUpdatedReceiver(callback func(signalIndexCache *session.SignalIndexCache)) {
	client.beginCallbackAssignment()
	defer client.endCallbackAssignment()

	client.subscriber().SubscriptionUpdatedCallback = callback
}

// SetDataStartTimeReceiver defines the callback that handles notification of first received measurement.
// Assignment will take effect immediately, even while subscription is active.
func (client *Client) SetDataStartTimeReceiver(callback func(startTime time.Time)) {
	client.beginCallbackAssignment()
	defer client.endCallbackAssignment()

	client.dataStartTimeReceiver = callback
}

// SetConfigurationChangedReceiver defines the callback that handles notifications that the data publisher
// configuration has changed.
// Assignment will take effect immediately, even while subscription is active.
func (client *Client) SetConfigurationChangedReceiver(callback func()) {
	client.beginCallbackAssignment()
	defer client.endCallbackAssignment()

	client.configurationChangedReceiver = callback
}

// SetNewMeasurementsReceiver defines the callback that handles reception of new measurements.
// Assignment will take effect immediately, even while subscription is active.
func (client *Client) SetNewMeasurementsReceiver(callback func(measurements []session.Measurement)) {
	sub := client.subscriber()
	sub.BeginCallbackAssignment()
	defer sub.EndCallbackAssignment()

	sub.NewMeasurementsCallback = callback
}

// SetNewBufferBlocksReceiver defines the callback that handles reception of new buffer blocks.
// Assignment will take effect immediately, even while subscription is active.
func (client *Client) SetNewBufferBlocksReceiver(callback func(bufferBlocks []session.BufferBlock)) {
	sub := client.subscriber()
	sub.BeginCallbackAssignment()
	defer sub.EndCallbackAssignment()

	sub.NewBufferBlocksCallback = callback
}

// SetNotificationReceiver defines the callback that handles reception of a notification.
// Assignment will take effect immediately, even while subscription is active.
func (client *Client) SetNotificationReceiver(callback func(notification string)) {
	sub := client.subscriber()
	sub.BeginCallbackAssignment()
	defer sub.EndCallbackAssignment()

	sub.NotificationReceivedCallback = callback
}

// SetHistoricalReadCompleteReceiver defines the callback that handles notification that temporal processing
// has completed, i.e., the end of a historical playback data stream has been reached.
// Assignment will take effect immediately, even while subscription is active.
func (client *Client) SetHistoricalReadCompleteReceiver(callback func()) {
	client.beginCallbackAssignment()
	defer client.endCallbackAssignment()

	client.historicalReadCompleteReceiver = callback
}

// SetConnectionEstablishedReceiver defines the callback that handles notification that a connection has been established.
// Default implementation simply writes connection feedback to StatusMessage handler.
// Assignment will take effect immediately, even while subscription is active.
func (client *Client) SetConnectionEstablishedReceiver(callback func()) {
	client.beginCallbackAssignment()
	defer client.endCallbackAssignment()

	client.connectionEstablishedReceiver = callback
}

// SetConnectionTerminatedReceiver defines the callback that handles notification that a connection has been terminated.
// Default implementation simply writes connection terminated feedback to ErrorMessage handler.
// Assignment will take effect immediately, even while subscription is active.
func (client *Client) SetConnectionTerminatedReceiver(callback func()) {
	sub := client.subscriber()
	sub.BeginCallbackAssignment()
	defer sub.EndCallbackAssignment()

	sub.ConnectionTerminatedCallback = callback
}
