package middlewares

import (
	"log"
	"os"
	"strconv"
	"strings"

	"tixgate/src/types"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

var jwtKey = []byte(os.Getenv("JWT_SECRET"))

// AuthMiddleware validates the bearer token issued by the identity
// service and stores the caller identity on the request context.
// Buyer accounts live outside this service so no user lookup happens here.
func AuthMiddleware(ctx *gin.Context) {
	bearerToken := ctx.Request.Header.Get("Authorization")
	if !strings.HasPrefix(bearerToken, "Bearer") {
		ctx.AbortWithStatus(401)
		return
	}
	reqToken := strings.Split(bearerToken, " ")[1]
	if reqToken == "" {
		ctx.AbortWithStatus(401)
		return
	}
	claims := &types.Claims{}
	tkn, err := jwt.ParseWithClaims(reqToken, claims, func(t *jwt.Token) (any, error) {
		return jwtKey, nil
	})
	if err != nil {
		log.Printf("token error: %s\n", err.Error())
		if err == jwt.ErrSignatureInvalid || err == jwt.ErrTokenMalformed {
			ctx.AbortWithStatus(401)
			return
		}
		ctx.AbortWithError(401, err)
		return
	}
	if !tkn.Valid {
		ctx.AbortWithStatus(401)
		return
	}

	uid, err := strconv.Atoi(claims.Subject)
	if err != nil || uid < 1 {
		log.Println("error parsing claims:", err)
		ctx.AbortWithStatus(401)
		return
	}
	ctx.Set("id", uint(uid))
	ctx.Set("email", claims.Email)
	ctx.Set("role", claims.Role)
}

// AdminMiddleware gates the organizer endpoints. Runs after AuthMiddleware.
func AdminMiddleware(ctx *gin.Context) {
	role := ctx.GetString("role")
	if role != "admin" && role != "organizer" {
		ctx.AbortWithStatus(403)
		return
	}
}
