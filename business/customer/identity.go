package customer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"customerIntel/domain"
)

// PIICipher encrypts and decrypts raw contact fields.
type PIICipher interface {
	Encrypt(plain string) (string, error)
	Decrypt(cipherText string) (string, error)
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashEmail is the deterministic lookup key for an email address.
func HashEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ""
	}
	return sha256Hex(email)
}

// NormalizePhone keeps digits and a plus sign only.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func HashPhone(phone string) string {
	phone = NormalizePhone(phone)
	if phone == "" {
		return ""
	}
	return sha256Hex(phone)
}

func hashLower(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	return sha256Hex(s)
}

// SetEmail stores the ciphertext and the lookup hash.
func SetEmail(p *domain.CustomerProfile, email string, cipher PIICipher) error {
	enc, err := cipher.Encrypt(strings.TrimSpace(email))
	if err != nil {
		return fmt.Errorf("encrypt email: %w", err)
	}
	p.Email = enc
	p.EmailHash = HashEmail(email)
	return nil
}

func SetPhone(p *domain.CustomerProfile, phone string, cipher PIICipher) error {
	enc, err := cipher.Encrypt(strings.TrimSpace(phone))
	if err != nil {
		return fmt.Errorf("encrypt phone: %w", err)
	}
	p.Phone = enc
	p.PhoneHash = HashPhone(phone)
	return nil
}

func SetName(p *domain.CustomerProfile, firstName, lastName string, cipher PIICipher) error {
	first, err := cipher.Encrypt(strings.TrimSpace(firstName))
	if err != nil {
		return fmt.Errorf("encrypt first name: %w", err)
	}
	last, err := cipher.Encrypt(strings.TrimSpace(lastName))
	if err != nil {
		return fmt.Errorf("encrypt last name: %w", err)
	}
	p.FirstName = first
	p.LastName = last
	return nil
}

// RevealPII decrypts the raw contact fields of a profile.
func RevealPII(p domain.CustomerProfile, cipher PIICipher) (domain.CustomerPII, error) {
	var (
		out domain.CustomerPII
		err error
	)
	if out.Email, err = cipher.Decrypt(p.Email); err != nil {
		return domain.CustomerPII{}, err
	}
	if out.Phone, err = cipher.Decrypt(p.Phone); err != nil {
		return domain.CustomerPII{}, err
	}
	if out.FirstName, err = cipher.Decrypt(p.FirstName); err != nil {
		return domain.CustomerPII{}, err
	}
	if out.LastName, err = cipher.Decrypt(p.LastName); err != nil {
		return domain.CustomerPII{}, err
	}
	return out, nil
}

// FullName is lower(trim(first + " " + last)) of the decrypted name.
func FullName(p domain.CustomerProfile, cipher PIICipher) (string, error) {
	first, err := cipher.Decrypt(p.FirstName)
	if err != nil {
		return "", err
	}
	last, err := cipher.Decrypt(p.LastName)
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(first + " " + last)), nil
}

// HashedAdData builds the hashed identity block ad networks match on.
func HashedAdData(p domain.CustomerProfile, cipher PIICipher) (domain.AdUserData, error) {
	pii, err := RevealPII(p, cipher)
	if err != nil {
		return domain.AdUserData{}, err
	}

	data := domain.AdUserData{
		Em:      p.EmailHash,
		Ph:      p.PhoneHash,
		Fn:      hashLower(pii.FirstName),
		Ln:      hashLower(pii.LastName),
		Ct:      hashLower(p.City),
		St:      hashLower(p.Region),
		Zp:      hashLower(p.PostalCode),
		Country: strings.ToLower(p.CountryCode),
	}
	if strings.HasPrefix(data.Em, anonymizedPrefix) {
		data.Em = ""
	}
	return data, nil
}
