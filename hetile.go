/*
Package hetile is a pure Go implementation of the BGV and CKKS homomorphic
encryption schemes over double-CRT polynomials, organised around tiles:
ciphertexts holding one vector of slots, with scheme-independent arithmetic,
rotations and serialization.

The packages are layered as follows:
  - ring: modular arithmetic, NTTs and double-CRT polynomials over sets of primes.
  - core/rlwe: contexts, keys, ciphertexts, encryption and key switching.
  - schemes/bgv, schemes/ckks: the encrypted arrays and evaluators of both schemes.
  - hebase: scheme-independent tiles, encoders and context configuration.
  - hebase/matrix, hebase/database: batched encrypted matrices and an encrypted key/value lookup.
*/
package hetile
