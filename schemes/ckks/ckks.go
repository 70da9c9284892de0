// Package ckks implements the slot encoding and the evaluation of the CKKS
// scheme for approximate arithmetic over the complex numbers, on top of the
// generic RLWE layer of core/rlwe.
//
// A CKKS plaintext holds N/2 complex slots. Values are fixed-point, scaled by
// the scale of the plaintext or ciphertext, and the scale is tracked through
// the homomorphic operations: products multiply scales and rescaling divides
// by the dropped prime.
package ckks
