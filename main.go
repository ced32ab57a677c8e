package main

import "zotero-sync/cmd"

func main() {
	cmd.Execute()
}
