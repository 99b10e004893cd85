// Package discovery finds noise monitors on the local network over mDNS.
//
// Devices advertise an "_http._tcp" service. A device is recognised by its
// default hostname ("noisemon-<id>.local") or, when the hostname has been
// changed, by a "model=noisemon" TXT record.
//
// # Usage Example
//
//	devices, err := discovery.QuickScan(ctx, 5*time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, d := range devices {
//	    fmt.Println(d.ID, d.BaseURL())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Devices must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
//
// A device still in setup mode is reachable at its access point address
// (192.168.4.1) without discovery.
package discovery
