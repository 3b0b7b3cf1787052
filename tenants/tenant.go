package tenants

// Credential is one tenant's partner credentials as stored at rest.
// Both secrets are hex ciphertexts produced by crypt.Encrypt.
type Credential struct {
	TenantID           string `json:"tenantId"`           // external customer id on the partner side
	EncryptedAPIKey    string `json:"encryptedApiKey"`    // decrypts to the partner client id
	EncryptedAPISecret string `json:"encryptedApiSecret"` // decrypts to the partner secret key
}
