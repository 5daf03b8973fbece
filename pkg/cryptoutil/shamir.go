// secretcore - M2M secrets management core
// Copyright (C) 2025 secretcore authors
//
// This file is part of secretcore.
//
// secretcore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// secretcore is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with secretcore. If not, see <https://www.gnu.org/licenses/>.

package cryptoutil

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// shareVersion is the version byte prefixed to every encoded share.
// EncodeShare embeds it, DecodeShare enforces it, so a share produced by
// an incompatible future encoding is rejected rather than silently
// misparsed.
const shareVersion = 1

// ErrIncompatibleShare is returned when a decoded share's version byte
// does not match shareVersion.
var ErrIncompatibleShare = errors.New("cryptoutil: incompatible shamir share version")

// gfPrime is the modulus of the finite field each secret byte is split
// over. 251 is the largest prime below 256, so most byte values (0-250)
// map directly into the field; values 250 < b <= 255 need the adjustment
// handled by adjustByteForSplit/restoreByteAfterCombine below.
//
// This same choice of field caps the number of shares a split can
// produce at 250, one below gfPrime: share indices double as x-coordinates
// in GF(251) arithmetic, x=0 is reserved for the secret itself, and only
// 250 nonzero elements remain (1..250). A 251st index would alias an
// existing one under mod-251 reduction in gfAdd/gfSub/gfMul, corrupting
// both shares silently. Supporting indices up to 255 would mean leaving
// GF(251) for GF(256), which changes the wire format and every byte
// operation below; maxShares stays at 250 rather than widening the field.
const (
	gfPrime   = 251
	maxShares = gfPrime - 1
)

// Share is one holder's piece of a split secret. ShamirCombine needs at
// least Threshold distinct shares (by Index) of the same split to recover
// the secret.
type Share struct {
	Index byte
	// Values holds one field element per secret byte.
	Values []byte
	// Adjust marks, one byte (0 or 1) per secret byte, which bytes were >= gfPrime and
	// need 251 added back after Lagrange interpolation. It is not
	// secret-dependent beyond "was this byte unusually large", so it
	// travels in the clear alongside the share.
	Adjust []byte
}

// gfAdd, gfSub, gfMul, gfPow operate on elements of GF(251) represented
// as plain bytes in [0, 250].

func gfAdd(a, b byte) byte { return byte((int(a) + int(b)) % gfPrime) }

func gfSub(a, b byte) byte { return byte(((int(a) - int(b)) % gfPrime + gfPrime) % gfPrime) }

func gfMul(a, b byte) byte { return byte((int(a) * int(b)) % gfPrime) }

// gfInv returns the multiplicative inverse of a in GF(251) via Fermat's
// little theorem: a^(p-2) = a^-1 mod p, since p is prime.
func gfInv(a byte) byte {
	if a == 0 {
		panic("cryptoutil: inverse of zero in GF(251)")
	}
	result := byte(1)
	base := a
	exp := gfPrime - 2
	for exp > 0 {
		if exp&1 == 1 {
			result = gfMul(result, base)
		}
		base = gfMul(base, base)
		exp >>= 1
	}
	return result
}

// adjustByteForSplit maps a full byte value into the GF(251) domain,
// reporting whether an adjustment was applied.
func adjustByteForSplit(b byte) (field byte, adjusted bool) {
	if b >= gfPrime {
		return b - gfPrime, true
	}
	return b, false
}

// restoreByteAfterCombine reverses adjustByteForSplit.
func restoreByteAfterCombine(field byte, adjusted bool) byte {
	if adjusted {
		return field + gfPrime
	}
	return field
}

// ShamirSplit splits secret into numShares shares such that any
// threshold of them reconstruct it, but threshold-1 reveal nothing. It
// operates byte-wise over GF(251).
func ShamirSplit(secret []byte, numShares, threshold int) ([]Share, error) {
	if threshold < 1 || numShares < threshold {
		return nil, fmt.Errorf("cryptoutil: invalid shamir parameters: threshold=%d shares=%d", threshold, numShares)
	}
	if numShares > maxShares {
		return nil, fmt.Errorf("cryptoutil: numShares must be <= %d, got %d", maxShares, numShares)
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("cryptoutil: cannot split empty secret")
	}

	n := len(secret)
	adjust := make([]byte, n)
	field := make([]byte, n)
	for i, b := range secret {
		fb, adjusted := adjustByteForSplit(b)
		field[i] = fb
		if adjusted {
			adjust[i] = 1
		}
	}

	shares := make([]Share, numShares)
	for s := 0; s < numShares; s++ {
		shares[s] = Share{
			Index:  byte(s + 1),
			Values: make([]byte, n),
			Adjust: adjust,
		}
	}

	coeffs := make([]byte, threshold)
	for byteIdx := 0; byteIdx < n; byteIdx++ {
		coeffs[0] = field[byteIdx]
		if _, err := rand.Read(coeffs[1:]); err != nil {
			return nil, fmt.Errorf("cryptoutil: generate shamir coefficients: %w", err)
		}
		for i := 1; i < threshold; i++ {
			coeffs[i] = coeffs[i] % gfPrime
		}

		for s := 0; s < numShares; s++ {
			x := byte(s + 1)
			shares[s].Values[byteIdx] = evalPolynomial(coeffs, x)
		}
	}

	if err := verifySplit(secret, shares, threshold); err != nil {
		return nil, fmt.Errorf("cryptoutil: shamir split failed self-verification: %w", err)
	}

	return shares, nil
}

// evalPolynomial evaluates f(x) = sum(coeffs[i] * x^i) mod 251 using
// Horner's method.
func evalPolynomial(coeffs []byte, x byte) byte {
	result := byte(0)
	for i := len(coeffs) - 1; i >= 0; i-- {
		result = gfAdd(gfMul(result, x), coeffs[i])
	}
	return result
}

// ShamirCombine reconstructs the original secret from threshold or more
// shares via Lagrange interpolation at x=0.
func ShamirCombine(shares []Share) ([]byte, error) {
	if len(shares) == 0 {
		return nil, fmt.Errorf("cryptoutil: no shares provided")
	}
	n := len(shares[0].Values)
	for _, s := range shares {
		if len(s.Values) != n {
			return nil, fmt.Errorf("cryptoutil: mismatched share lengths")
		}
	}
	seen := make(map[byte]bool, len(shares))
	for _, s := range shares {
		if seen[s.Index] {
			return nil, fmt.Errorf("cryptoutil: duplicate share index %d", s.Index)
		}
		seen[s.Index] = true
	}

	secret := make([]byte, n)
	for byteIdx := 0; byteIdx < n; byteIdx++ {
		secret[byteIdx] = lagrangeAtZero(shares, byteIdx)
	}

	adjust := shares[0].Adjust
	out := make([]byte, n)
	for i, b := range secret {
		adjusted := i < len(adjust) && adjust[i] == 1
		out[i] = restoreByteAfterCombine(b, adjusted)
	}
	return out, nil
}

// lagrangeAtZero interpolates the byteIdx-th coordinate of every share at
// x=0, which recovers the constant term of the original polynomial: the
// secret byte.
func lagrangeAtZero(shares []Share, byteIdx int) byte {
	result := byte(0)
	for i, si := range shares {
		xi := si.Index
		yi := si.Values[byteIdx]

		num := byte(1)
		den := byte(1)
		for j, sj := range shares {
			if i == j {
				continue
			}
			xj := sj.Index
			// numerator *= (0 - xj) = -xj
			num = gfMul(num, gfSub(0, xj))
			// denominator *= (xi - xj)
			den = gfMul(den, gfSub(xi, xj))
		}
		term := gfMul(yi, gfMul(num, gfInv(den)))
		result = gfAdd(result, term)
	}
	return result
}

// EncodeShare renders a share as the wire/display form:
// version_byte || index_byte || payload || adjustment_mask, base64
// encoded. payload length equals len(Adjust).
func EncodeShare(s Share) string {
	n := len(s.Values)
	raw := make([]byte, 0, 2+n+len(s.Adjust))
	raw = append(raw, shareVersion, s.Index)
	raw = append(raw, s.Values...)
	raw = append(raw, s.Adjust...)
	return base64.StdEncoding.EncodeToString(raw)
}

// DecodeShare reverses EncodeShare, rejecting a version byte other than
// shareVersion with ErrIncompatibleShare.
func DecodeShare(encoded string) (Share, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Share{}, fmt.Errorf("cryptoutil: decode share: %w", err)
	}
	if len(raw) < 2 {
		return Share{}, fmt.Errorf("cryptoutil: share too short")
	}
	if raw[0] != shareVersion {
		return Share{}, ErrIncompatibleShare
	}
	index := raw[1]
	rest := raw[2:]
	if len(rest)%2 != 0 {
		return Share{}, fmt.Errorf("cryptoutil: malformed share payload")
	}
	n := len(rest) / 2
	values := append([]byte(nil), rest[:n]...)
	adjust := append([]byte(nil), rest[n:]...)
	return Share{Index: index, Values: values, Adjust: adjust}, nil
}

// verifySplit reconstructs the secret from the first `threshold` shares
// immediately after splitting, refusing to hand back shares that would
// not actually reconstruct. This mirrors the split-then-verify discipline
// used for other secret-sharing schemes in this codebase's lineage.
func verifySplit(secret []byte, shares []Share, threshold int) error {
	recovered, err := ShamirCombine(shares[:threshold])
	if err != nil {
		return err
	}
	if len(recovered) != len(secret) {
		return fmt.Errorf("recovered length %d != secret length %d", len(recovered), len(secret))
	}
	for i := range secret {
		if recovered[i] != secret[i] {
			return fmt.Errorf("recovered secret does not match original at byte %d", i)
		}
	}
	return nil
}
