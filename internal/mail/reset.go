package mail

import "fmt"

// PasswordReset composes the password reset email. The sender identity is
// left empty so the configured defaults apply at send time.
func PasswordReset(toEmail, firstName, resetURL string) Message {
	greeting := "Hi,"
	if firstName != "" {
		greeting = fmt.Sprintf("Hi %s,", firstName)
	}

	body := fmt.Sprintf(`%s

We received a request to reset the password for your account.

To choose a new password, open the link below. The link is valid for two
hours and can be used once.

%s

If you did not request this, you can safely ignore this email; your
password has not been changed.
`, greeting, resetURL)

	return Message{
		ToEmail:  toEmail,
		Subject:  "Reset your password",
		TextBody: body,
	}
}
