// Package rlwe implements the generic cryptographic layer shared by the BGV and CKKS schemes:
// the Context and its modulus chain, keys, ciphertexts whose parts are tagged with secret-key
// handles, encryption, decryption, and an Evaluator for products, hybrid key switching,
// rescaling and automorphisms.
// Ciphertexts track a heuristic bound of the log2 norm of their decryption, and all objects
// serialize to a versioned container authenticated by a blake3 digest.
package rlwe
