package model

// Sizes of AES-256-CBC key material.
const (
	KeySize = 32
	IVSize  = 16
)

// KeyMaterial is the symmetric key and initialization vector used by the
// cipher. The same pair must be used to decrypt anything it encrypted.
type KeyMaterial struct {
	Key []byte
	IV  []byte
}

// Valid reports whether the key and IV have the sizes AES-256-CBC requires.
func (m KeyMaterial) Valid() bool {
	return len(m.Key) == KeySize && len(m.IV) == IVSize
}
