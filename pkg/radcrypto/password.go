package radcrypto

import (
	"crypto/md5"
	"crypto/rand"
	"fmt"
)

const blockSize = 16

// cryptBlocks runs the RADIUS chained-MD5 keystream: the first 16-byte
// block is XORed against MD5(secret + seed), and every subsequent block
// against MD5(secret + previous ciphertext block). decrypt reports whether
// plain holds ciphertext, so that the chain follows the input blocks
// rather than the output blocks.
func cryptBlocks(plain, secret, seed []byte, decrypt bool) []byte {
	out := make([]byte, len(plain))
	prev := seed
	for i := 0; i < len(plain); i += blockSize {
		h := md5.New()
		h.Write(secret)
		h.Write(prev)
		keystream := h.Sum(nil)

		block := plain[i : i+blockSize]
		cipher := make([]byte, blockSize)
		for j := 0; j < blockSize; j++ {
			cipher[j] = block[j] ^ keystream[j]
		}
		copy(out[i:i+blockSize], cipher)
		if decrypt {
			prev = block
		} else {
			prev = cipher
		}
	}
	return out
}

func padTo16(b []byte) []byte {
	if rem := len(b) % blockSize; rem != 0 {
		b = append(b, make([]byte, blockSize-rem)...)
	}
	if len(b) == 0 {
		b = make([]byte, blockSize)
	}
	return b
}

// PWCrypt obfuscates a User-Password attribute per RFC 2865 §5.2: the
// password is zero-padded to a multiple of 16 octets, then chained-MD5-XOR
// encrypted using the Request Authenticator as the first block's seed.
func PWCrypt(password []byte, requestAuth Authenticator, secret []byte) []byte {
	plain := padTo16(append([]byte(nil), password...))
	return cryptBlocks(plain, secret, requestAuth[:], false)
}

// PWDecrypt reverses PWCrypt. The result retains the zero padding added
// during encryption; trailing NUL bytes are not part of the original
// password but the protocol has no length field to distinguish a password
// that itself ends in NUL, so callers that care must TrimRight it
// themselves knowing their own data.
func PWDecrypt(encrypted []byte, requestAuth Authenticator, secret []byte) ([]byte, error) {
	if len(encrypted) == 0 || len(encrypted)%blockSize != 0 {
		return nil, fmt.Errorf("encrypted User-Password must be a non-zero multiple of %d octets, got %d", blockSize, len(encrypted))
	}
	return cryptBlocks(encrypted, secret, requestAuth[:], true), nil
}

// GenerateTunnelPasswordSalt returns a random 2-octet salt with the
// mandatory high bit of the first octet set, per RFC 2868 §3.5.
func GenerateTunnelPasswordSalt() ([2]byte, error) {
	var salt [2]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return salt, fmt.Errorf("generate tunnel password salt: %w", err)
	}
	salt[0] |= 0x80
	return salt, nil
}

// TunnelPasswordEncrypt obfuscates a Tunnel-Password attribute per RFC 2868
// §3.5: a one-octet length prefix and the password are zero-padded to a
// multiple of 16 octets, then chained-MD5-XOR encrypted seeded with
// secret + Request Authenticator + salt. The returned value is the salt
// followed by the ciphertext, exactly as it appears on the wire.
func TunnelPasswordEncrypt(password []byte, requestAuth Authenticator, secret []byte, salt [2]byte) ([]byte, error) {
	if len(password) > 253 {
		return nil, fmt.Errorf("tunnel password too long: %d > 253 octets", len(password))
	}
	plain := make([]byte, 0, 1+len(password))
	plain = append(plain, byte(len(password)))
	plain = append(plain, password...)
	plain = padTo16(plain)

	seed := make([]byte, 0, AuthenticatorLength+2)
	seed = append(seed, requestAuth[:]...)
	seed = append(seed, salt[:]...)

	cipher := cryptBlocks(plain, secret, seed, false)
	out := make([]byte, 0, 2+len(cipher))
	out = append(out, salt[:]...)
	out = append(out, cipher...)
	return out, nil
}

// TunnelPasswordDecrypt reverses TunnelPasswordEncrypt. value is the full
// wire value: a 2-octet salt followed by the ciphertext.
func TunnelPasswordDecrypt(value []byte, requestAuth Authenticator, secret []byte) ([]byte, error) {
	if len(value) < 2+blockSize {
		return nil, fmt.Errorf("tunnel password value too short: %d octets", len(value))
	}
	salt := value[:2]
	cipher := value[2:]
	if len(cipher)%blockSize != 0 {
		return nil, fmt.Errorf("tunnel password ciphertext must be a multiple of %d octets, got %d", blockSize, len(cipher))
	}

	seed := make([]byte, 0, AuthenticatorLength+2)
	seed = append(seed, requestAuth[:]...)
	seed = append(seed, salt...)

	plain := cryptBlocks(cipher, secret, seed, true)
	if len(plain) == 0 {
		return nil, fmt.Errorf("tunnel password decrypted to empty block")
	}
	n := int(plain[0])
	if n+1 > len(plain) {
		return nil, fmt.Errorf("tunnel password length prefix %d exceeds decrypted block size %d", n, len(plain)-1)
	}
	return plain[1 : 1+n], nil
}
