// Package hash is a synchronous-digest-over-async-Callback façade: compute
// a digest and deliver it through the reactor's scheduling mechanism
// instead of returning it directly, so a caller can treat hashing the
// same way it treats any other reactor operation.
package hash

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash"

	"github.com/wanproxy-go/reactor"
)

// Algorithm names a supported digest algorithm.
type Algorithm int

const (
	MD5 Algorithm = iota
	SHA1
	SHA256
)

// String returns the algorithm's canonical name.
func (a Algorithm) String() string {
	switch a {
	case MD5:
		return "MD5"
	case SHA1:
		return "SHA1"
	case SHA256:
		return "SHA256"
	default:
		return "Unknown"
	}
}

func newHasher(a Algorithm) (hash.Hash, error) {
	switch a {
	case MD5:
		return md5.New(), nil
	case SHA1:
		return sha1.New(), nil
	case SHA256:
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("hash: unsupported algorithm %d", a)
	}
}

// Method exposes the set of algorithms this façade supports.
type Method struct{}

// NewMethod constructs the standard-library-backed Method. There is only
// ever one Method in this package — Go's crypto/* packages are the only
// backend wired in (see DESIGN.md).
func NewMethod() *Method { return &Method{} }

// Algorithms returns the algorithms this Method can instantiate.
func (m *Method) Algorithms() []Algorithm {
	return []Algorithm{MD5, SHA1, SHA256}
}

// NewInstance constructs an Instance for algorithm.
func (m *Method) NewInstance(algorithm Algorithm) (*Instance, error) {
	h, err := newHasher(algorithm)
	if err != nil {
		return nil, err
	}
	return &Instance{algorithm: algorithm, hasher: h}, nil
}

// Instance computes digests for one algorithm. An Instance is not safe
// for concurrent use — each Submit resets and reuses the underlying
// hash.Hash for one-shot-per-submit usage.
type Instance struct {
	algorithm Algorithm
	hasher    hash.Hash
}

// Algorithm reports which algorithm this Instance computes.
func (i *Instance) Algorithm() Algorithm { return i.algorithm }

// Submit computes the digest of data and schedules cb on loop with the
// result. The returned Action cancels the scheduled delivery; it has no
// effect on the (synchronous, non-cancellable) digest computation itself.
func (i *Instance) Submit(loop *reactor.Loop, data []byte, cb *reactor.Callback) *reactor.Action {
	i.hasher.Reset()
	// Write on a hash.Hash never returns an error — crypto/md5, sha1, and
	// sha256 all satisfy this stdlib guarantee — so no Error Event path
	// exists here.
	_, _ = i.hasher.Write(data)
	sum := i.hasher.Sum(nil)
	cb.Param(reactor.Done(sum))
	return loop.Schedule(cb)
}
