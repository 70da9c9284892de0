// Package hebase implements a scheme-oblivious tile layer over the BGV and
// CKKS evaluators: an HeContext bundles a context, its keys and a scheme
// backend, a CTile is a ciphertext bound to an HeContext and a PTile a
// plaintext. Tile operations align the levels and scales of their operands,
// and relinearize and rescale after products unless the Raw variant is used.
package hebase
