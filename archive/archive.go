// Copyright 2025 Blink Labs Software
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

// Package archive writes and reads tender audit bundles. A bundle is a
// zstd-compressed tar stream holding the public record of one tender
// instance as JSON documents plus the sealed proposal payloads
package archive

import (
	"archive/tar"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/blinklabs-io/zktender/database/models"
	"github.com/blinklabs-io/zktender/tender"
)

const (
	ManifestName = "manifest.json"

	// maxEntrySize is the largest single entry accepted when reading
	maxEntrySize = 64 << 20

	// maxTotalSize is the maximum cumulative bytes read from one bundle
	maxTotalSize = 1 << 30
)

var ErrInvalidBundle = errors.New("invalid audit bundle")

// Source is the read side of the tender engine used to build a bundle
type Source interface {
	PublicState(ctx context.Context, tenderID string) (*tender.PublicState, error)
	PhaseHistory(ctx context.Context, tenderID string) ([]models.PhaseTransition, error)
	VotingStats(ctx context.Context, tenderID string, submissionID string) ([]tender.SubmissionStats, error)
	Comments(ctx context.Context, tenderID string, submissionID string) ([]models.Comment, error)
	Evaluations(ctx context.Context, tenderID string) ([]models.Evaluation, error)
	FinalEvaluations(ctx context.Context, tenderID string) ([]models.FinalEvaluation, error)
	Payload(ctx context.Context, tenderID string, submissionID string) ([]byte, error)
}

var _ Source = (*tender.Engine)(nil)

// Manifest describes the contents of a bundle
type Manifest struct {
	TenderID  string    `json:"tender_id"`
	Phase     string    `json:"phase"`
	CreatedAt time.Time `json:"created_at"`
	Entries   []string  `json:"entries"`
}

// Bundle is a bundle read back into memory
type Bundle struct {
	Manifest Manifest
	Entries  map[string][]byte
}

type entry struct {
	name string
	data []byte
}

// Export writes the audit bundle for a tender to w
func Export(
	ctx context.Context,
	src Source,
	tenderID string,
	w io.Writer,
	now time.Time,
) (*Manifest, error) {
	entries, state, err := collect(ctx, src, tenderID)
	if err != nil {
		return nil, err
	}
	manifest := &Manifest{
		TenderID:  tenderID,
		Phase:     string(state.Phase),
		CreatedAt: now.UTC(),
		Entries:   make([]string, 0, len(entries)),
	}
	for _, e := range entries {
		manifest.Entries = append(manifest.Entries, e.name)
	}
	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	entries = append([]entry{{name: ManifestName, data: manifestData}}, entries...)

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return nil, fmt.Errorf("creating zstd writer: %w", err)
	}
	tw := tar.NewWriter(zw)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			_ = zw.Close()
			return nil, fmt.Errorf("export cancelled: %w", err)
		}
		header := &tar.Header{
			Name:     e.name,
			Mode:     0o640,
			Size:     int64(len(e.data)),
			ModTime:  manifest.CreatedAt,
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(header); err != nil {
			_ = zw.Close()
			return nil, fmt.Errorf("writing tar header %s: %w", e.name, err)
		}
		if _, err := tw.Write(e.data); err != nil {
			_ = zw.Close()
			return nil, fmt.Errorf("writing %s: %w", e.name, err)
		}
	}
	if err := tw.Close(); err != nil {
		_ = zw.Close()
		return nil, fmt.Errorf("closing tar writer: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing zstd writer: %w", err)
	}
	return manifest, nil
}

func collect(
	ctx context.Context,
	src Source,
	tenderID string,
) ([]entry, *tender.PublicState, error) {
	state, err := src.PublicState(ctx, tenderID)
	if err != nil {
		return nil, nil, err
	}
	var entries []entry
	add := func(name string, v any) error {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding %s: %w", name, err)
		}
		entries = append(entries, entry{name: name, data: data})
		return nil
	}
	if err := add("state.json", state); err != nil {
		return nil, nil, err
	}
	phases, err := src.PhaseHistory(ctx, tenderID)
	if err != nil {
		return nil, nil, err
	}
	if err := add("phases.json", phases); err != nil {
		return nil, nil, err
	}
	stats, err := src.VotingStats(ctx, tenderID, "")
	if err != nil {
		return nil, nil, err
	}
	if err := add("stats.json", stats); err != nil {
		return nil, nil, err
	}
	evaluations, err := src.Evaluations(ctx, tenderID)
	if err != nil {
		return nil, nil, err
	}
	if err := add("evaluations.json", evaluations); err != nil {
		return nil, nil, err
	}
	finalEvaluations, err := src.FinalEvaluations(ctx, tenderID)
	if err != nil {
		return nil, nil, err
	}
	if err := add("final-evaluations.json", finalEvaluations); err != nil {
		return nil, nil, err
	}
	for _, c := range state.Commitments {
		comments, err := src.Comments(ctx, tenderID, c.SubmissionID)
		if err != nil {
			return nil, nil, err
		}
		if err := add("comments/"+c.SubmissionID+".json", comments); err != nil {
			return nil, nil, err
		}
		payload, err := src.Payload(ctx, tenderID, c.SubmissionID)
		if err != nil {
			return nil, nil, fmt.Errorf("load payload %s: %w", c.SubmissionID, err)
		}
		entries = append(entries, entry{
			name: "payloads/" + c.SubmissionID + ".bin",
			data: payload,
		})
	}
	return entries, state, nil
}

// Read loads a bundle from r. Entries outside the regular file type are
// skipped
func Read(ctx context.Context, r io.Reader) (*Bundle, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	ret := &Bundle{
		Entries: make(map[string][]byte),
	}
	var totalRead int64
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("read cancelled: %w", err)
		}
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading tar header: %w", err)
		}
		name := path.Clean(header.Name)
		if !validRelPath(name) {
			return nil, fmt.Errorf(
				"%w: invalid path %s",
				ErrInvalidBundle,
				header.Name,
			)
		}
		switch header.Typeflag {
		case tar.TypeReg,
			'\x00': // legacy regular-file flag
			if header.Size > maxEntrySize {
				return nil, fmt.Errorf(
					"%w: entry %s exceeds maximum size (%d > %d)",
					ErrInvalidBundle, header.Name, header.Size, maxEntrySize,
				)
			}
			// Cap actual bytes read independent of the header
			data, err := io.ReadAll(io.LimitReader(tr, maxEntrySize+1))
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", header.Name, err)
			}
			if len(data) > maxEntrySize {
				return nil, fmt.Errorf(
					"%w: entry %s decompressed beyond maximum size",
					ErrInvalidBundle, header.Name,
				)
			}
			totalRead += int64(len(data))
			if totalRead > maxTotalSize {
				return nil, fmt.Errorf(
					"%w: bundle exceeds maximum total size (%d)",
					ErrInvalidBundle, maxTotalSize,
				)
			}
			ret.Entries[name] = data
		default:
			continue
		}
	}
	manifestData, ok := ret.Entries[ManifestName]
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidBundle, ManifestName)
	}
	if err := json.Unmarshal(manifestData, &ret.Manifest); err != nil {
		return nil, fmt.Errorf("%w: decoding manifest: %w", ErrInvalidBundle, err)
	}
	for _, name := range ret.Manifest.Entries {
		if _, ok := ret.Entries[name]; !ok {
			return nil, fmt.Errorf("%w: missing entry %s", ErrInvalidBundle, name)
		}
	}
	return ret, nil
}

// validRelPath rejects absolute paths and any ".." component. The input
// should already be path.Clean'd
func validRelPath(p string) bool {
	if p == "" || p == "." ||
		strings.Contains(p, `\`) ||
		strings.HasPrefix(p, "/") {
		return false
	}
	return !slices.Contains(strings.Split(p, "/"), "..")
}
