// Package ir provides the serializable representation shared by the rindel
// packages: constrained values, canonical JSON, program specs produced by the
// CUE compiler, and trace records emitted by the engine.
//
// All other internal packages may import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - use int64 for numbers
//   - Canonical JSON (RFC 8785 key order, NFC strings) is the only encoding
//     used for digests
//   - Logical instants only, never wall-clock timestamps
package ir
