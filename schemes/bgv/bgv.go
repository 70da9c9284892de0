// Package bgv implements the BGV scheme on top of core/rlwe: the EncryptedArray,
// which maps vectors of integers modulo t = p^r to plaintexts through an NTT
// modulo t, and an Evaluator adding full cyclic slot rotations, products with
// modulus switching, powers and total products.
package bgv
