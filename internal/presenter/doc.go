// Package presenter contains the surfaces toasts are rendered on: the log
// console, browser clients over a websocket, and a Telegram chat. Multi
// combines several of them behind a single toast.Presenter.
package presenter
