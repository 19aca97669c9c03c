/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package errs defines the typed error kinds every component in the
// pipeline reports through, so the orchestrator can dispatch on
// errors.As instead of string matching.
package errs

import "fmt"

// Kind is one of the error categories from the error-handling design.
type Kind string

// All recognised error kinds.
const (
	KindPacketDuplicate         Kind = "PacketDuplicate"
	KindPacketTooOld            Kind = "PacketTooOld"
	KindResync                  Kind = "Resync"
	KindGapFilled               Kind = "GapFilled"
	KindTonePoorSNR             Kind = "TonePoorSNR"
	KindTonesAmbiguous          Kind = "TonesAmbiguous"
	KindDiscriminationUncertain Kind = "DiscriminationUncertain"
	KindKalmanInnovationOutlier Kind = "KalmanInnovationOutlier"
	KindStateFileCorrupt        Kind = "StateFileCorrupt"
	KindArchiveWriteFailed      Kind = "ArchiveWriteFailed"
	KindTimeSnapMissing         Kind = "TimeSnapMissing"
	KindSourceUnavailable       Kind = "source_unavailable"
	KindQueueOverflow           Kind = "queue_overflow"
)

// ComponentError is the typed error every component returns instead of
// an ad-hoc fmt.Errorf, so callers can recover the kind and channel
// without string matching.
type ComponentError struct {
	Kind        Kind
	Channel     string
	Recoverable bool
	Err         error
}

func (e *ComponentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s[%s]: %v", e.Kind, e.Channel, e.Err)
	}
	return fmt.Sprintf("%s[%s]", e.Kind, e.Channel)
}

// Unwrap lets errors.Is/As see through to the wrapped cause.
func (e *ComponentError) Unwrap() error {
	return e.Err
}

// New builds a recoverable ComponentError.
func New(kind Kind, channel string, err error) *ComponentError {
	return &ComponentError{Kind: kind, Channel: channel, Recoverable: true, Err: err}
}

// NewFatal builds a non-recoverable ComponentError; the orchestrator
// shuts down the affected channel on one of these.
func NewFatal(kind Kind, channel string, err error) *ComponentError {
	return &ComponentError{Kind: kind, Channel: channel, Recoverable: false, Err: err}
}
