package chains

var known = []Chain{
	{Solana, "solana", PlatformSolana},
	{Ethereum, "ethereum", PlatformEVM},
	{Terra, "terra", PlatformCosmWasm},
	{BSC, "bsc", PlatformEVM},
	{Polygon, "polygon", PlatformEVM},
	{Avalanche, "avalanche", PlatformEVM},
	{Oasis, "oasis", PlatformEVM},
	{Algorand, "algorand", PlatformOther},
	{Aurora, "aurora", PlatformEVM},
	{Fantom, "fantom", PlatformEVM},
	{Karura, "karura", PlatformEVM},
	{Acala, "acala", PlatformEVM},
	{Klaytn, "klaytn", PlatformEVM},
	{Celo, "celo", PlatformEVM},
	{Near, "near", PlatformOther},
	{Moonbeam, "moonbeam", PlatformEVM},
	{Terra2, "terra2", PlatformCosmWasm},
	{Injective, "injective", PlatformCosmWasm},
	{Osmosis, "osmosis", PlatformCosmWasm},
	{Sui, "sui", PlatformOther},
	{Aptos, "aptos", PlatformOther},
	{Arbitrum, "arbitrum", PlatformEVM},
	{Optimism, "optimism", PlatformEVM},
	{Gnosis, "gnosis", PlatformEVM},
	{PythNet, "pythnet", PlatformSolana},
	{Xpla, "xpla", PlatformCosmWasm},
	{Base, "base", PlatformEVM},
	{Sei, "sei", PlatformCosmWasm},
	{Scroll, "scroll", PlatformEVM},
	{Mantle, "mantle", PlatformEVM},
	{Blast, "blast", PlatformEVM},
	{Linea, "linea", PlatformEVM},
	{Wormchain, "wormchain", PlatformCosmWasm},
	{Cosmoshub, "cosmoshub", PlatformCosmWasm},
	{Evmos, "evmos", PlatformCosmWasm},
	{Kujira, "kujira", PlatformCosmWasm},
	{Neutron, "neutron", PlatformCosmWasm},
	{Celestia, "celestia", PlatformCosmWasm},
	{Stargaze, "stargaze", PlatformCosmWasm},
	{Sepolia, "sepolia", PlatformEVM},
	{ArbitrumSepolia, "arbitrum_sepolia", PlatformEVM},
	{BaseSepolia, "base_sepolia", PlatformEVM},
	{OptimismSepolia, "optimism_sepolia", PlatformEVM},
	{Holesky, "holesky", PlatformEVM},
	{PolygonSepolia, "polygon_sepolia", PlatformEVM},
}
