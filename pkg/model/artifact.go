package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"fraud-gate/pkg/features"
)

// Artifact is the on-disk envelope around a serialized classifier.
//
//	{
//	  "kind": "tree_ensemble",
//	  "version": "2024-05-01",
//	  "feature_names": ["step", "amount", ...],
//	  "model": { ... kind-specific ... }
//	}
type Artifact struct {
	Kind         string          `json:"kind"`
	Version      string          `json:"version,omitempty"`
	FeatureNames []string        `json:"feature_names,omitempty"`
	Model        json.RawMessage `json:"model"`
}

// DecodeFunc builds a Classifier from the kind-specific part of an artifact.
// numFeatures is the row width the classifier must accept.
type DecodeFunc func(raw json.RawMessage, numFeatures int) (Classifier, error)

var (
	kindsMu sync.RWMutex
	kinds   = make(map[string]DecodeFunc)
)

// Register makes an artifact kind available to Open and Parse. Kind packages
// call it from init, so a binary supports a kind by importing its package.
// Register panics if called twice for the same kind or with a nil decoder.
func Register(kind string, decode DecodeFunc) {
	kindsMu.Lock()
	defer kindsMu.Unlock()

	if decode == nil {
		panic("model: Register decoder is nil")
	}
	if _, dup := kinds[kind]; dup {
		panic("model: Register called twice for kind " + kind)
	}
	kinds[kind] = decode
}

// Kinds returns the registered artifact kinds, sorted.
func Kinds() []string {
	kindsMu.RLock()
	defer kindsMu.RUnlock()

	list := make([]string, 0, len(kinds))
	for k := range kinds {
		list = append(list, k)
	}
	sort.Strings(list)
	return list
}

// Model is a loaded artifact together with its provenance.
type Model struct {
	Classifier Classifier
	Kind       string
	Version    string
	// Digest is the hex sha256 of the artifact bytes.
	Digest   string
	Path     string
	LoadedAt time.Time
}

// Open reads and decodes the artifact at path.
func Open(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	m, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
			return nil, le
		}
		return nil, &LoadError{Path: path, Err: err}
	}
	m.Path = path
	return m, nil
}

// Parse decodes an artifact held in memory.
func Parse(data []byte) (*Model, error) {
	var art Artifact
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&art); err != nil {
		return nil, &LoadError{Err: fmt.Errorf("decode artifact: %w", err)}
	}

	if err := checkFeatureNames(art.FeatureNames); err != nil {
		return nil, &LoadError{Err: err}
	}

	kindsMu.RLock()
	decode, ok := kinds[art.Kind]
	kindsMu.RUnlock()
	if !ok {
		return nil, &LoadError{Err: fmt.Errorf("%w %q (registered: %v)", ErrUnknownKind, art.Kind, Kinds())}
	}

	clf, err := decode(art.Model, features.Size)
	if err != nil {
		return nil, &LoadError{Err: fmt.Errorf("decode %s: %w", art.Kind, err)}
	}
	if n := clf.NumFeatures(); n != features.Size {
		return nil, &LoadError{Err: fmt.Errorf("%w: classifier expects %d features, vector has %d", ErrFeatureMismatch, n, features.Size)}
	}

	sum := sha256.Sum256(data)
	return &Model{
		Classifier: clf,
		Kind:       art.Kind,
		Version:    art.Version,
		Digest:     hex.EncodeToString(sum[:]),
		LoadedAt:   time.Now(),
	}, nil
}

// checkFeatureNames verifies a declared schema against features.Order.
// An absent schema is accepted; a present one must match slot for slot.
func checkFeatureNames(names []string) error {
	if len(names) == 0 {
		return nil
	}
	if len(names) != features.Size {
		return fmt.Errorf("%w: artifact declares %d features, want %d", ErrFeatureMismatch, len(names), features.Size)
	}
	for i, name := range names {
		if name != features.Order[i] {
			return fmt.Errorf("%w: slot %d is %q, want %q", ErrFeatureMismatch, i, name, features.Order[i])
		}
	}
	return nil
}
