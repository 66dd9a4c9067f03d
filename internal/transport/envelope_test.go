package transport

import (
	"testing"
)

func TestDecodeSuccessEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantData string
		wantKind Kind
		wantMsg  string
	}{
		{
			name:     "success with data",
			body:     `{"success":true,"data":{"x":1}}`,
			wantData: `{"x":1}`,
		},
		{
			name: "success without data",
			body: `{"success":true}`,
		},
		{
			name:     "failure with message",
			body:     `{"success":false,"message":"device not bound"}`,
			wantKind: KindBusiness,
			wantMsg:  "device not bound",
		},
		{
			name:     "failure without message",
			body:     `{"success":false}`,
			wantKind: KindBusiness,
			wantMsg:  "request rejected",
		},
		{
			name:     "missing flag",
			body:     `{"data":{}}`,
			wantKind: KindBusiness,
		},
		{
			name:     "not json",
			body:     `<html>gateway error</html>`,
			wantKind: KindBusiness,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := decodeEnvelope(EnvelopeSuccess, []byte(tt.body))
			if tt.wantKind == "" {
				if err != nil {
					t.Fatalf("decodeEnvelope() error: %v", err)
				}
				if string(data) != tt.wantData {
					t.Errorf("data = %s, want %s", data, tt.wantData)
				}
				return
			}
			if err == nil {
				t.Fatal("decodeEnvelope() expected error")
			}
			if err.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", err.Kind, tt.wantKind)
			}
			if tt.wantMsg != "" && err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
		})
	}
}

func TestDecodeCodeEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantData string
		wantErr  bool
		wantMsg  string
	}{
		{
			name:     "code zero is success",
			body:     `{"Code":0,"Data":[1,2]}`,
			wantData: `[1,2]`,
		},
		{
			name:    "nonzero code is failure",
			body:    `{"Code":1001,"Message":"invoice not ready"}`,
			wantErr: true,
			wantMsg: "invoice not ready",
		},
		{
			name:    "nonzero code with Msg alias",
			body:    `{"Code":1,"Msg":"bad period"}`,
			wantErr: true,
			wantMsg: "bad period",
		},
		{
			name:    "missing code field",
			body:    `{"success":true}`,
			wantErr: true,
		},
		{
			name:     "lowercase data fallback",
			body:     `{"Code":0,"data":{"y":2}}`,
			wantData: `{"y":2}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := decodeEnvelope(EnvelopeCode, []byte(tt.body))
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("decodeEnvelope() error: %v", err)
				}
				if string(data) != tt.wantData {
					t.Errorf("data = %s, want %s", data, tt.wantData)
				}
				return
			}
			if err == nil {
				t.Fatal("decodeEnvelope() expected error")
			}
			if err.Kind != KindBusiness {
				t.Errorf("Kind = %v, want %v", err.Kind, KindBusiness)
			}
			if tt.wantMsg != "" && err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
		})
	}
}
