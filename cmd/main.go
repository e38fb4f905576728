package main

// @title Lending Engine API
// @version 1.0
// @description Loan requests, credit scoring and disbursement for subscribed customers.

// @contact.name API Support
// @contact.email support@lending-engine.local

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	Execute()
}
