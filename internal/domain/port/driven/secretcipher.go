package driven

// SecretCipher encrypts secrets into storable text and back.
// Decrypt(Encrypt(p)) must equal p for every byte sequence p.
type SecretCipher interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(text string) ([]byte, error)
	// DecryptString is Decrypt followed by a UTF-8 validity check.
	DecryptString(text string) (string, error)
}
