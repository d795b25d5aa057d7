// Package ir provides the foundational value types shared by every loopswap
// package: 32-byte keys, canonical JSON and domain-separated hashing.
//
// ir imports nothing internal. All other internal packages may import ir.
//
// Key design constraints:
//   - Participants, assets and trade loop ids are all ir.Key (32 raw bytes)
//   - NO float types in canonical JSON; integers only
//   - All JSON tags use snake_case
package ir
