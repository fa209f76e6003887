package password

import "errors"

// ErrUnknownHashFormat is returned when no configured hasher recognizes an
// encoded hash.
var ErrUnknownHashFormat = errors.New("unknown password hash format")

// Hasher is implemented by Argon2 and Bcrypt.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret string, encoded string) (bool, error)
	NeedsUpgrade(encoded string) (bool, error)
	Matches(encoded string) bool
}

// Chain hashes with a primary algorithm and verifies with whichever
// configured hasher recognizes the stored format. Hashes produced by a
// legacy hasher always report NeedsUpgrade.
type Chain struct {
	primary Hasher
	legacy  []Hasher
}

func NewChain(primary Hasher, legacy ...Hasher) *Chain {
	return &Chain{primary: primary, legacy: legacy}
}

func (c *Chain) Hash(secret string) (string, error) {
	return c.primary.Hash(secret)
}

func (c *Chain) Verify(secret string, encoded string) (bool, error) {
	h, err := c.pick(encoded)
	if err != nil {
		return false, err
	}
	return h.Verify(secret, encoded)
}

func (c *Chain) NeedsUpgrade(encoded string) (bool, error) {
	if c.primary.Matches(encoded) {
		return c.primary.NeedsUpgrade(encoded)
	}
	if _, err := c.pick(encoded); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Chain) Matches(encoded string) bool {
	_, err := c.pick(encoded)
	return err == nil
}

func (c *Chain) pick(encoded string) (Hasher, error) {
	if c.primary.Matches(encoded) {
		return c.primary, nil
	}
	for _, h := range c.legacy {
		if h.Matches(encoded) {
			return h, nil
		}
	}
	return nil, ErrUnknownHashFormat
}
