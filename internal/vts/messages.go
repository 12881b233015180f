// Package vts speaks the avatar host's JSON-over-WebSocket API: request
// envelopes correlated by request id, plus unsolicited event frames.
package vts

import "encoding/json"

const (
	apiName    = "VTubeStudioPublicAPI"
	apiVersion = "1.0"
)

// Message types used on the wire.
const (
	msgAPIError = "APIError"

	msgAuthTokenRequest  = "AuthenticationTokenRequest"
	msgAuthTokenResponse = "AuthenticationTokenResponse"
	msgAuthRequest       = "AuthenticationRequest"
	msgAuthResponse      = "AuthenticationResponse"

	msgHotkeysRequest  = "HotkeysInCurrentModelRequest"
	msgHotkeysResponse = "HotkeysInCurrentModelResponse"

	msgHotkeyTriggerRequest  = "HotkeyTriggerRequest"
	msgHotkeyTriggerResponse = "HotkeyTriggerResponse"

	msgEventSubRequest  = "EventSubscriptionRequest"
	msgEventSubResponse = "EventSubscriptionResponse"

	msgModelLoadedEvent = "ModelLoadedEvent"
)

// envelope is the outer frame every message travels in, both directions.
type envelope struct {
	APIName     string          `json:"apiName"`
	APIVersion  string          `json:"apiVersion"`
	RequestID   string          `json:"requestID,omitempty"`
	MessageType string          `json:"messageType"`
	Data        json.RawMessage `json:"data,omitempty"`
}

type apiErrorData struct {
	ErrorID int    `json:"errorID"`
	Message string `json:"message"`
}

type authTokenRequestData struct {
	PluginName      string `json:"pluginName"`
	PluginDeveloper string `json:"pluginDeveloper"`
}

type authTokenResponseData struct {
	AuthenticationToken string `json:"authenticationToken"`
}

type authRequestData struct {
	PluginName          string `json:"pluginName"`
	PluginDeveloper     string `json:"pluginDeveloper"`
	AuthenticationToken string `json:"authenticationToken"`
}

type authResponseData struct {
	Authenticated bool   `json:"authenticated"`
	Reason        string `json:"reason"`
}

type hotkey struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	File     string `json:"file"`
	HotkeyID string `json:"hotkeyID"`
}

type hotkeysResponseData struct {
	ModelLoaded      bool     `json:"modelLoaded"`
	ModelName        string   `json:"modelName"`
	AvailableHotkeys []hotkey `json:"availableHotkeys"`
}

type hotkeyTriggerRequestData struct {
	HotkeyID string `json:"hotkeyID"`
}

type eventSubRequestData struct {
	EventName string         `json:"eventName"`
	Subscribe bool           `json:"subscribe"`
	Config    map[string]any `json:"config,omitempty"`
}
