// Package tui implements the full-screen terminal front end for noisepanel.
//
// Built on Bubble Tea, it has two screens:
//   - Discovery: browse the network for noise monitors over mDNS, or enter
//     an address by hand
//   - Dashboard: the live panel for one device, with Status, Controls,
//     Wi-Fi and Logs pages
//
// The dashboard renders panel snapshots and turns key presses into engine
// intents. Snapshots arrive through the engine's subscription channel and are
// delivered as messages, so the model is only touched on the update loop.
// Calls that talk to the device or the identity provider run as commands and
// report back through an action result message.
//
// The Controls page is the login form until the operator holds the admin
// role. Editing a field marks it focused in the engine's edit guard for as
// long as the inline editor is open, so polls never overwrite what is being
// typed.
//
// Every screen is wrapped by RenderApplicationContainer for a consistent
// header and help footer.
package tui
