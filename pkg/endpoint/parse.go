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
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
)

// 🔀 Parser turns two positional arguments into a TransferSpec
type Parser struct {
	fs    afero.Fs
	env   Environment
	homes HomeResolver
}

// NewParser creates a parser that checks local paths on fsys
func NewParser(fsys afero.Fs, env Environment, homes HomeResolver) *Parser {
	return &Parser{fs: fsys, env: env, homes: homes}
}

// remoteArg is the split form of a host:path argument
type remoteArg struct {
	user string
	host string
	path string
}

// Parse decides direction from which argument names a remote host. Exactly
// one side must be remote. A second argument that is a bare word and not an
// existing local path is read as a host with the remote path left out.
func (p *Parser) Parse(ctx context.Context, arg1, arg2 string) (*TransferSpec, error) {
	r1, remote1, err := splitRemote(arg1)
	if err != nil {
		return nil, err
	}
	r2, remote2, err := splitRemote(arg2)
	if err != nil {
		return nil, err
	}

	var spec *TransferSpec
	switch {
	case remote1 && remote2:
		return nil, errors.Errorf("%w: both %q and %q name a remote host", ErrInvalidArguments, arg1, arg2)
	case remote2:
		spec, err = p.upload(arg1, arg2, r2)
	case remote1:
		spec, err = p.download(arg1, r1, arg2)
	case p.isBareHost(arg2):
		var r remoteArg
		if r, err = splitBareHost(arg2); err == nil {
			spec, err = p.upload(arg1, arg2, r)
		}
	default:
		return nil, errors.Errorf("%w: neither %q nor %q names a remote host (use host:path)", ErrInvalidArguments, arg1, arg2)
	}
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().
		Str("direction", spec.Direction.String()).
		Str("local", spec.Local.Path).
		Str("remote", spec.Remote.Target()).
		Str("provenance", spec.RemoteProvenance.String()).
		Msg("parsed endpoints")

	return spec, nil
}

func (p *Parser) upload(localArg, remoteText string, r remoteArg) (*TransferSpec, error) {
	local := p.ExpandLocal(localArg)
	if ok, err := afero.Exists(p.fs, local); err != nil || !ok {
		if err == nil {
			err = os.ErrNotExist
		}
		return nil, errors.Errorf("%w: %s: %v", ErrLocalPathNotFound, localArg, err)
	}

	user := r.user
	if user == "" {
		user = p.homes.RemoteUser(r.host)
	}
	home := p.homes.RemoteHome(r.host, user)

	spec := &TransferSpec{
		Direction: Upload,
		Local:     Endpoint{Arg: localArg, Path: local},
		Remote:    Endpoint{Arg: remoteText, Remote: true, User: r.user, Host: r.host},
	}

	if r.path == "" {
		spec.Remote.Path = p.InferRemotePath(local, home)
		spec.RemoteProvenance = Inferred
	} else {
		spec.Remote.Path = ExpandRemote(r.path, home)
		spec.RemoteProvenance = UserProvided
	}

	return spec, nil
}

func (p *Parser) download(remoteText string, r remoteArg, localArg string) (*TransferSpec, error) {
	if r.path == "" {
		return nil, errors.Errorf("%w: %q has no remote path to download", ErrInvalidArguments, remoteText)
	}

	user := r.user
	if user == "" {
		user = p.homes.RemoteUser(r.host)
	}

	return &TransferSpec{
		Direction:        Download,
		Local:            Endpoint{Arg: localArg, Path: p.ExpandLocal(localArg)},
		Remote:           Endpoint{Arg: remoteText, Remote: true, User: r.user, Host: r.host, Path: ExpandRemote(r.path, p.homes.RemoteHome(r.host, user))},
		RemoteProvenance: UserProvided,
	}, nil
}

// isBareHost reports whether arg can only be a host name
func (p *Parser) isBareHost(arg string) bool {
	if arg == "" || arg == "." || arg == ".." || strings.HasPrefix(arg, "~") || strings.HasPrefix(arg, "$") {
		return false
	}
	if strings.ContainsAny(arg, `/\`) {
		return false
	}
	ok, _ := afero.Exists(p.fs, p.ExpandLocal(arg))
	return !ok
}

// InferRemotePath mirrors the local path into the remote home. A path under
// the local home keeps its position relative to home; anything else lands in
// the remote home under its basename.
func (p *Parser) InferRemotePath(local, remoteHome string) string {
	if p.env.Home != "" {
		if rel, err := filepath.Rel(p.env.Home, local); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return path.Join(remoteHome, filepath.ToSlash(rel))
		}
	}
	return path.Join(remoteHome, filepath.Base(local))
}

// ExpandLocal expands ~ and environment variables and makes the path absolute
func (p *Parser) ExpandLocal(arg string) string {
	s := arg
	if p.env.Getenv != nil {
		s = os.Expand(s, p.env.Getenv)
	}
	if s == "~" {
		s = p.env.Home
	} else if strings.HasPrefix(s, "~/") {
		s = filepath.Join(p.env.Home, s[2:])
	}
	if !filepath.IsAbs(s) {
		s = filepath.Join(p.env.WorkDir, s)
	}
	return filepath.Clean(s)
}

// ExpandRemote resolves ~ and relative paths against the remote home
func ExpandRemote(p, home string) string {
	switch {
	case p == "~":
		return home
	case strings.HasPrefix(p, "~/"):
		return path.Join(home, p[2:])
	case path.IsAbs(p):
		return path.Clean(p)
	default:
		return path.Join(home, p)
	}
}

// splitBareHost splits [user@]host given without a path
func splitBareHost(arg string) (remoteArg, error) {
	var r remoteArg
	host := arg
	if at := strings.IndexByte(arg, '@'); at >= 0 {
		r.user, host = arg[:at], arg[at+1:]
	}
	if host == "" {
		return remoteArg{}, errors.Errorf("%w: %q has a user but no host", ErrInvalidArguments, arg)
	}
	r.host = host
	return r, nil
}

// splitRemote recognizes [user@]host:path and [user@][v6addr]:path. Text before
// the first colon that contains a path separator makes the argument local.
func splitRemote(arg string) (remoteArg, bool, error) {
	var r remoteArg
	rest := arg

	if at := strings.IndexByte(rest, '@'); at >= 0 {
		if colon := strings.IndexByte(rest, ':'); colon > at && !strings.ContainsAny(rest[:at], `/\`) {
			r.user = rest[:at]
			rest = rest[at+1:]
		}
	}

	var host string
	if strings.HasPrefix(rest, "[") {
		end := strings.Index(rest, "]:")
		if end < 0 {
			return remoteArg{}, false, nil
		}
		host, r.path = rest[1:end], rest[end+2:]
	} else {
		colon := strings.IndexByte(rest, ':')
		if colon < 0 || strings.ContainsAny(rest[:colon], `/\`) {
			return remoteArg{}, false, nil
		}
		host, r.path = rest[:colon], rest[colon+1:]
	}

	if host == "" {
		if r.user != "" {
			return remoteArg{}, false, errors.Errorf("%w: %q has a user but no host", ErrInvalidArguments, arg)
		}
		return remoteArg{}, false, nil
	}

	r.host = host
	return r, true, nil
}
