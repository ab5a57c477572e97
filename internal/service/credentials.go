package service

import "github.com/campfield/ticketoffice/internal/utils"

// Thin seams over the utils generators so tests can swap in
// deterministic sources.

func randomPassword() (string, error) {
	return utils.RandomPassword()
}

func newCheckinCode(length int) (string, error) {
	return utils.NewCheckinCode(length)
}
