// Copyright 2026 The mcrcon authors. All rights reserved.
// Use of this source code is governed by an ISC license that can be found in the LICENSE file.

/*
Package rcon provides a client for Minecraft's RCON remote console protocol as
described at https://wiki.vg/RCON. Connect to a server with [Dial] (or bring
your own connection via [NewClient]), authenticate with [Client.LogIn], and
issue commands with [Client.SendCommand].

Servers may split long command responses across several packets without
marking the last one. The client detects the end of such responses by sending
an empty follow-up command with the same request ID and stopping once its
empty echo arrives, so servers will observe one extra empty command per
[Client.SendCommand] call.
*/
package rcon
