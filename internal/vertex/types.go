// Package vertex provides an HTTP client for Vertex AI publisher-model
// prediction endpoints: synchronous predict, predictLongRunning and
// fetchPredictOperation.
package vertex

import "encoding/json"

// Target identifies a publisher model inside a project.
type Target struct {
	ProjectID string
	Model     string
}

// PredictRequest is the body shared by predict and predictLongRunning.
type PredictRequest struct {
	Instances  []Instance `json:"instances"`
	Parameters any        `json:"parameters"`
}

// Instance is a single prediction input.
type Instance struct {
	Prompt string `json:"prompt"`
	Image  *Image `json:"image,omitempty"`
}

// Image is an inline reference image.
type Image struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType,omitempty"`
}

// ImageParameters are the Imagen generation parameters.
type ImageParameters struct {
	SampleCount     int    `json:"sampleCount"`
	SampleImageSize string `json:"sampleImageSize,omitempty"`
	AspectRatio     string `json:"aspectRatio,omitempty"`
}

// VideoParameters are the Veo generation parameters.
type VideoParameters struct {
	SampleCount     int    `json:"sampleCount"`
	Resolution      string `json:"resolution,omitempty"`
	GenerateAudio   bool   `json:"generateAudio"`
	DurationSeconds int    `json:"durationSeconds"`
	AspectRatio     string `json:"aspectRatio,omitempty"`
}

// Prediction is one synchronous prediction output.
type Prediction struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded,omitempty"`
	MimeType           string `json:"mimeType,omitempty"`
	GCSURI             string `json:"gcsUri,omitempty"`
}

// Video is one long-running operation output.
type Video struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded,omitempty"`
	GCSURI             string `json:"gcsUri,omitempty"`
	MimeType           string `json:"mimeType,omitempty"`
}

// PredictResponse is either Predictions or EmptyPredictions.
type PredictResponse interface {
	isPredictResponse()
}

// Predictions is a predict response carrying at least one prediction.
type Predictions struct {
	Items []Prediction
}

// EmptyPredictions is a 2xx predict response without any prediction.
type EmptyPredictions struct{}

func (Predictions) isPredictResponse()      {}
func (EmptyPredictions) isPredictResponse() {}

// Operation is the state of a long-running operation: OperationPending,
// OperationFailed or OperationDone.
type Operation interface {
	isOperation()
}

// OperationPending means done is still false.
type OperationPending struct {
	Name string
}

// OperationFailed means done is true and the server reported an error.
type OperationFailed struct {
	Name    string
	Code    int
	Message string
}

// OperationDone means done is true without an error. Videos may still be
// empty, for example when every sample was filtered.
type OperationDone struct {
	Name            string
	Videos          []Video
	FilteredCount   int
	FilteredReasons []string
}

func (OperationPending) isOperation() {}
func (OperationFailed) isOperation()  {}
func (OperationDone) isOperation()    {}

// predictWireResponse is the raw predict response body.
type predictWireResponse struct {
	Predictions []Prediction `json:"predictions"`
}

// operationStartResponse is the raw predictLongRunning response body.
type operationStartResponse struct {
	Name string `json:"name"`
}

// fetchOperationRequest is the fetchPredictOperation request body.
type fetchOperationRequest struct {
	OperationName string `json:"operationName"`
}

// operationWireResponse is the raw fetchPredictOperation response body.
type operationWireResponse struct {
	Name     string                 `json:"name"`
	Done     bool                   `json:"done"`
	Error    json.RawMessage        `json:"error,omitempty"`
	Response *operationWireVideoSet `json:"response,omitempty"`
}

type operationWireVideoSet struct {
	Videos                  []Video  `json:"videos"`
	RAIMediaFilteredCount   int      `json:"raiMediaFilteredCount,omitempty"`
	RAIMediaFilteredReasons []string `json:"raiMediaFilteredReasons,omitempty"`
}

type statusPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

// errorEnvelope is the Google API error body returned with non-2xx statuses.
type errorEnvelope struct {
	Error statusPayload `json:"error"`
}
