/*
 * Copyright (C) 2024 Nuts community
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 *
 */

package client

import (
	"context"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/nuts-foundation/nuts-siop/http/log"
)

// DefaultAttempts is the number of attempts DoWithRetry makes when no explicit number is given.
const DefaultAttempts uint = 3

// RetryDelay is the initial delay between attempts, doubling after every attempt.
var RetryDelay = 200 * time.Millisecond

// DoWithRetry executes the request built by newRequest, retrying on transport errors and 5xx responses.
// Other responses (including 4xx) are returned to the caller, who is responsible for checking the status code.
// newRequest is invoked for every attempt, since request bodies can only be read once.
func DoWithRetry(ctx context.Context, doer core.HTTPRequestDoer, attempts uint, newRequest func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	if attempts == 0 {
		attempts = DefaultAttempts
	}
	var response *http.Response
	err := retry.Do(func() error {
		request, err := newRequest(ctx)
		if err != nil {
			return retry.Unrecoverable(err)
		}
		httpResponse, err := doer.Do(request)
		if err != nil {
			return err
		}
		if httpResponse.StatusCode >= http.StatusInternalServerError {
			defer httpResponse.Body.Close()
			return core.TestResponseCodeWithLog(http.StatusOK, httpResponse, log.Logger())
		}
		response = httpResponse
		return nil
	},
		retry.Attempts(attempts),
		retry.Delay(RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Logger().WithError(err).Debugf("HTTP request failed, retrying (attempt=%d)", n+1)
		}),
	)
	if err != nil {
		return nil, err
	}
	return response, nil
}
