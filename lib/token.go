package lib

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/uvensys/captchad/lib/challenge"
)

var (
	ErrInvalidPassToken = errors.New("lib: pass token is not valid")
	ErrPassTokenReused  = errors.New("lib: pass token was already verified")
)

// Pass is what a verified pass token says about the solved challenge.
type Pass struct {
	ChallengeID string         `json:"challengeId"`
	Type        challenge.Type `json:"type"`
	IssuedAt    time.Time      `json:"issuedAt"`
	ExpiresAt   time.Time      `json:"expiresAt"`
}

func (s *Server) signJWT(claims jwt.MapClaims) (string, error) {
	now := s.clock()
	claims["iat"] = now.Unix()
	claims["nbf"] = now.Add(-1 * time.Minute).Unix()
	claims["exp"] = now.Add(s.opts.PassTokenTTL).Unix()

	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(s.priv)
}

// PassToken mints a signed token proving that chall was solved.
func (s *Server) PassToken(chall *challenge.Challenge) (string, error) {
	return s.signJWT(jwt.MapClaims{
		"sub": chall.ID,
		"typ": string(chall.Type),
	})
}

func (s *Server) parseJWT(tokenString string) (*Pass, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return s.pub, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPassToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims type %T", ErrInvalidPassToken, token.Claims)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidPassToken)
	}

	typ, _ := claims["typ"].(string)

	result := &Pass{
		ChallengeID: sub,
		Type:        challenge.Type(typ),
	}

	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		result.IssuedAt = iat.Time
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		result.ExpiresAt = exp.Time
	}

	return result, nil
}

// VerifyPassToken checks a pass token's signature and lifetime. Each token
// verifies once; later attempts fail with ErrPassTokenReused.
func (s *Server) VerifyPassToken(tokenString string) (*Pass, error) {
	pass, err := s.parseJWT(tokenString)
	if err != nil {
		return nil, err
	}

	// Remember the redemption for as long as the token could still be
	// presented.
	if !s.redeemed.AddUntil(pass.ChallengeID, struct{}{}, pass.ExpiresAt.Add(time.Second)) {
		return nil, fmt.Errorf("%w: %s", ErrPassTokenReused, pass.ChallengeID)
	}

	return pass, nil
}
