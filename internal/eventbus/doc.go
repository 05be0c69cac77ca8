// Package eventbus is the in-process fan-out used to surface order
// transitions, notification creation and job runs to observers such as the
// admin status endpoint and tests.
package eventbus
