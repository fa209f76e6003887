package flows

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Login          LoginDeps
	SecondFactor   SecondFactorDeps
	TwoFactor      TwoFactorDeps
	ChangePassword ChangePasswordDeps
	PasswordReset  PasswordResetDeps
	Register       RegisterDeps
	AccountStatus  AccountStatusDeps
	Session        SessionDeps
}
