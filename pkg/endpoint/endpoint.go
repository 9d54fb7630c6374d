// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package endpoint

import (
	"fmt"

	"gitlab.com/tozd/go/errors"
)

var (
	ErrInvalidArguments  = errors.Base("invalid arguments")
	ErrLocalPathNotFound = errors.Base("local path not found")
)

// 🧭 Direction is which way bytes move relative to the local machine
type Direction int

const (
	Upload Direction = iota
	Download
)

// String returns a string representation of Direction
func (d Direction) String() string {
	if d == Download {
		return "download"
	}
	return "upload"
}

// 🏷️ Provenance records whether the remote path was typed or derived
type Provenance int

const (
	UserProvided Provenance = iota
	Inferred
)

// String returns a string representation of Provenance
func (p Provenance) String() string {
	if p == Inferred {
		return "inferred"
	}
	return "user-provided"
}

// 📍 Endpoint is one side of a transfer
type Endpoint struct {
	Arg    string // Argument as typed on the command line
	Remote bool   // Whether this side lives on a remote host
	User   string // Remote login user, empty for local endpoints
	Host   string // Remote host or ssh alias, empty for local endpoints
	Path   string // Absolute path; slash-separated on the remote side
}

// Target returns the endpoint in the form scp expects
func (e Endpoint) Target() string {
	if !e.Remote {
		return e.Path
	}
	return e.Login() + ":" + e.Path
}

// Login returns user@host, or just host when no user was given
func (e Endpoint) Login() string {
	if e.User == "" {
		return e.Host
	}
	return e.User + "@" + e.Host
}

// String returns a string representation of Endpoint
func (e Endpoint) String() string {
	if e.Remote {
		return fmt.Sprintf("remote(%s)", e.Target())
	}
	return fmt.Sprintf("local(%s)", e.Path)
}

// 📦 TransferSpec is exactly one local and one remote endpoint plus a direction
type TransferSpec struct {
	Direction        Direction
	Local            Endpoint
	Remote           Endpoint
	RemoteProvenance Provenance
}

// Source returns the endpoint bytes are read from
func (s *TransferSpec) Source() Endpoint {
	if s.Direction == Download {
		return s.Remote
	}
	return s.Local
}

// Destination returns the endpoint bytes are written to
func (s *TransferSpec) Destination() Endpoint {
	if s.Direction == Download {
		return s.Local
	}
	return s.Remote
}

// String returns a string representation of TransferSpec
func (s *TransferSpec) String() string {
	return fmt.Sprintf("%s %s -> %s", s.Direction, s.Source(), s.Destination())
}
