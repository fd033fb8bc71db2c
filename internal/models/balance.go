package models

// Balance reports the remaining vendor credits.
type Balance struct {
	RemainingFiles int    `json:"remainingFiles" msgpack:"remainingFiles"`
	UsedCredits    int    `json:"usedCredits" msgpack:"usedCredits"`
	TotalCredits   int    `json:"totalCredits" msgpack:"totalCredits"`
	Plan           string `json:"plan" msgpack:"plan"`
	Price          string `json:"price" msgpack:"price"`
	Success        bool   `json:"success" msgpack:"success"`
}
