package webhook

import (
	"testing"
)

func TestVerifySignature(t *testing.T) {
	secret := "test-channel-secret"
	body := []byte(`{"events":[{"type":"message"}]}`)

	validSig := computeExpectedSignature(body, secret)

	tests := []struct {
		name      string
		body      []byte
		signature string
		secret    string
		wantErr   bool
	}{
		{
			name:      "valid signature",
			body:      body,
			signature: validSig,
			secret:    secret,
			wantErr:   false,
		},
		{
			name:      "tampered body",
			body:      []byte(`{"events":[{"type":"messagf"}]}`),
			signature: validSig,
			secret:    secret,
			wantErr:   true,
		},
		{
			name:      "wrong secret",
			body:      body,
			signature: validSig,
			secret:    "other-secret",
			wantErr:   true,
		},
		{
			name:      "truncated signature",
			body:      body,
			signature: validSig[:len(validSig)-4],
			secret:    secret,
			wantErr:   true,
		},
		{
			name:      "padded signature",
			body:      body,
			signature: validSig + "====",
			secret:    secret,
			wantErr:   true,
		},
		{
			name:      "not base64 at all",
			body:      body,
			signature: "!!! definitely not base64 !!!",
			secret:    secret,
			wantErr:   true,
		},
		{
			name:      "empty signature",
			body:      body,
			signature: "",
			secret:    secret,
			wantErr:   true,
		},
		{
			name:      "empty secret",
			body:      body,
			signature: validSig,
			secret:    "",
			wantErr:   true,
		},
		{
			name:      "empty body still verifiable",
			body:      []byte{},
			signature: computeExpectedSignature([]byte{}, secret),
			secret:    secret,
			wantErr:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifySignature(tt.body, tt.signature, tt.secret)
			if (err != nil) != tt.wantErr {
				t.Errorf("verifySignature() error = %v, wantErr %v", err, tt.wantErr)
			}

			// All errors should be generic (no information leakage)
			if err != nil && err.Error() != "webhook verification failed" {
				t.Errorf("error should be generic, got: %v", err)
			}
		})
	}
}

func TestVerifySignature_EveryByteMatters(t *testing.T) {
	secret := "s3cret"
	body := []byte("expense 150")
	sig := computeExpectedSignature(body, secret)

	for i := range body {
		mutated := append([]byte(nil), body...)
		mutated[i] ^= 0x01
		if err := verifySignature(mutated, sig, secret); err == nil {
			t.Errorf("byte %d: mutated body should fail verification", i)
		}
	}
}
