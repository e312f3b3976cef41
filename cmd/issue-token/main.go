// Command issue-token mints a staff access token for the booking API.
//
//	issue-token -staff alice -role ADMIN -ttl 480
//
// The signing secret is read from JWT_SECRET (a .env file is honored).
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/iliyamo/theater-booking/internal/middleware"
	"github.com/iliyamo/theater-booking/internal/utils"
)

func main() {
	staff := flag.String("staff", "", "staff id to put in the token subject")
	role := flag.String("role", middleware.RoleStaff, "ADMIN or STAFF")
	ttl := flag.Int("ttl", 480, "lifetime in minutes")
	flag.Parse()

	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
		os.Exit(1)
	}
	if strings.TrimSpace(*staff) == "" {
		fmt.Fprintln(os.Stderr, "-staff is required")
		os.Exit(2)
	}
	r := strings.ToUpper(*role)
	if r != middleware.RoleAdmin && r != middleware.RoleStaff {
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
		os.Exit(2)
	}

	tok, err := utils.NewAccessToken(secret, *staff, r, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sign token:", err)
		os.Exit(1)
	}
	fmt.Println(tok.Token)
	fmt.Fprintf(os.Stderr, "expires %s\n", tok.Exp.Format("2006-01-02 15:04 MST"))
}
