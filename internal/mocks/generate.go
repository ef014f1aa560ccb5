// Package mocks provides gomock implementations of the core ports for tests.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	ch := mocks.NewMockEventChannel(ctrl)
//	ch.EXPECT().Subscribe(gomock.Any(), "patient_data_channel").Return(nil, apperrors.ErrUnavailable)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=event_channel_mock.go github.com/gittidev/vibe-socket-test/internal/core EventChannel,Subscription

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=executor_mock.go github.com/gittidev/vibe-socket-test/internal/core Executor
