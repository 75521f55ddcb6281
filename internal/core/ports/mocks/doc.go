// Package mocks provides test doubles for ports interfaces.
//
// These mocks are designed to be simple, thread-safe, in-memory implementations
// suitable for unit testing. Each mock provides:
//
//   - Default behavior close to the real adapter (unique keys, monotonic cursors)
//   - Callback functions (xxxFn) for customizing behavior per test
//   - Helper methods for seeding and inspecting state directly
//
// # Usage Example
//
//	func TestPoller(t *testing.T) {
//		store := mocks.NewStore()
//		accountID := store.AddAccount("cipher", 1)
//		channelID := store.AddChannel("news")
//		store.Subscribe(accountID, channelID, 0)
//		// ... run the poller, then inspect store.Messages()
//	}
//
// # Available Mocks
//
//   - Store: implements ports.TxBeginner, its transactions implement ports.UnitOfWork
//   - MessageSource: implements ports.MessageSource with scripted channel histories
//   - ObjectStorage: implements ports.ObjectStorage
//   - SecretOpener: implements ports.SecretOpener
package mocks
