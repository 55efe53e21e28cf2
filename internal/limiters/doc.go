// Package limiters contains the failed-login admission policy.
package limiters
