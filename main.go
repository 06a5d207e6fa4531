package main

import "flexbin/internal/flexbin"

func main() {
	flexbin.Main()
}
