package smtp

import "fmt"

// VerificationEmail builds the subject and HTML body for an address
// verification mail. link must be the full clickable URL.
func VerificationEmail(link string) (subject, body string) {
	subject = "Verify your email address"
	body = fmt.Sprintf(`<p>Welcome! Please confirm your email address by clicking the link below.</p>
<p><a href="%s">Verify email</a></p>
<p>This link expires in 1 hour. If you did not create an account, you can ignore this message.</p>`, link)
	return subject, body
}

// PasswordResetEmail builds the subject and HTML body for a password reset
// mail.
func PasswordResetEmail(link string) (subject, body string) {
	subject = "Reset your password"
	body = fmt.Sprintf(`<p>We received a request to reset your password. Click the link below to choose a new one.</p>
<p><a href="%s">Reset password</a></p>
<p>This link expires in 1 hour. If you did not request a reset, you can ignore this message.</p>`, link)
	return subject, body
}
