package domain

// Challenge is the reduced answer of the bot-verification provider.
type Challenge struct {
	Success    bool
	ErrorCodes []string
}
