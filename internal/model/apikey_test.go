package model

import (
	"testing"
)

func TestAPIKey_HasScope(t *testing.T) {
	testCases := []struct {
		name      string
		keyScopes []string
		checkFor  string
		want      bool
	}{
		{
			name:      "has exact scope",
			keyScopes: []string{ScopeRead, ScopeWrite},
			checkFor:  ScopeRead,
			want:      true,
		},
		{
			name:      "does not have scope",
			keyScopes: []string{ScopeRead},
			checkFor:  ScopeWrite,
			want:      false,
		},
		{
			name:      "admin implies read",
			keyScopes: []string{ScopeAdmin},
			checkFor:  ScopeRead,
			want:      true,
		},
		{
			name:      "admin implies write",
			keyScopes: []string{ScopeAdmin},
			checkFor:  ScopeWrite,
			want:      true,
		},
		{
			name:      "student keys are not admin",
			keyScopes: StudentScopes,
			checkFor:  ScopeAdmin,
			want:      false,
		},
		{
			name:      "empty scopes",
			keyScopes: []string{},
			checkFor:  ScopeRead,
			want:      false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			key := &APIKey{Scopes: tc.keyScopes}
			if got := key.HasScope(tc.checkFor); got != tc.want {
				t.Errorf("HasScope(%s) = %v, want %v", tc.checkFor, got, tc.want)
			}

			authCtx := &AuthContext{Scopes: tc.keyScopes}
			if got := authCtx.HasScope(tc.checkFor); got != tc.want {
				t.Errorf("AuthContext.HasScope(%s) = %v, want %v", tc.checkFor, got, tc.want)
			}
		})
	}
}

func TestAPIKey_GetRateLimitConfig(t *testing.T) {
	key := &APIKey{RateLimitTier: "gold"}
	if got := key.GetRateLimitConfig(); got != TierConfigs[TierStandard] {
		t.Errorf("unknown tier should fall back to standard, got %+v", got)
	}

	key.RateLimitTier = TierUnlimited
	if got := key.GetRateLimitConfig(); got.RequestsPerMinute != 0 {
		t.Errorf("unlimited tier should have no per-minute cap, got %d", got.RequestsPerMinute)
	}
}
