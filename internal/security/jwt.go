package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWT validation errors.
var (
	// ErrInvalidToken indicates a token is malformed or fails validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken indicates a token has expired.
	ErrExpiredToken = errors.New("token expired")
)

// Token audiences keep shop and operator tokens from being accepted for each other.
const (
	audienceShop     = "giftpin-shop"
	audienceOperator = "giftpin-operator"
)

// ShopClaims identifies the tenant a shop client acts for.
type ShopClaims struct {
	ShopID uint64 `json:"shop_id"`
	jwt.RegisteredClaims
}

// OperatorClaims identifies a back-office operator.
type OperatorClaims struct {
	OperatorID uint64 `json:"operator_id"`
	Username   string `json:"username"`
	jwt.RegisteredClaims
}

// GenerateShopToken signs a shop JWT with the configured expiry.
func GenerateShopToken(secret string, shopID uint64, expiry time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := ShopClaims{
		ShopID: shopID,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{audienceShop},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseShopToken validates a shop JWT and returns its claims.
func ParseShopToken(secret string, tokenString string) (*ShopClaims, error) {
	claims := &ShopClaims{}
	if err := parse(secret, tokenString, audienceShop, claims); err != nil {
		return nil, err
	}
	if claims.ShopID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GenerateOperatorToken signs an operator JWT with the configured expiry.
func GenerateOperatorToken(secret string, operatorID uint64, username string, expiry time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := OperatorClaims{
		OperatorID: operatorID,
		Username:   username,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{audienceOperator},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseOperatorToken validates an operator JWT and returns its claims.
func ParseOperatorToken(secret string, tokenString string) (*OperatorClaims, error) {
	claims := &OperatorClaims{}
	if err := parse(secret, tokenString, audienceOperator, claims); err != nil {
		return nil, err
	}
	if claims.OperatorID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func parse(secret, tokenString, audience string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	}, jwt.WithAudience(audience))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return ErrInvalidToken
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
