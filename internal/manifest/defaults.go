package manifest

const (
	binariesBaseURL = "https://github.com/bol-van/zapret-win-bundle/raw/refs/heads/master/zapret-winws"
	fakeBaseURL     = "https://raw.githubusercontent.com/Noktomezo/ZIStorage/main/fake"
	listsBaseURL    = "https://raw.githubusercontent.com/Noktomezo/ZIStorage/main/lists"
	filtersBaseURL  = "https://raw.githubusercontent.com/bol-van/zapret-win-bundle/master/zapret-winws/windivert.filter"
)

var defaultBinaries = []string{
	"WinDivert.dll",
	"WinDivert64.sys",
	WorkerExecutable,
	"cygwin1.dll",
}

var defaultFake = []string{
	"4pda.bin",
	"dht_find_node.bin",
	"dht_get_peers.bin",
	"discord-ip-discovery-with-port.bin",
	"discord-ip-discovery-without-port.bin",
	"dtls_clienthello_w3_org.bin",
	"http_iana_org.bin",
	"isakmp_initiator_request.bin",
	"max.bin",
	"quic_initial_facebook_com.bin",
	"quic_initial_facebook_com_quiche.bin",
	"quic_initial_rr1---sn-xguxaxjvh-n8me_googlevideo_com_kyber_1.bin",
	"quic_initial_rr1---sn-xguxaxjvh-n8me_googlevideo_com_kyber_2.bin",
	"quic_initial_rr2---sn-gvnuxaxjvh-o8ge_googlevideo_com.bin",
	"quic_initial_rutracker_org.bin",
	"quic_initial_rutracker_org_kyber_1.bin",
	"quic_initial_rutracker_org_kyber_2.bin",
	"quic_initial_vk_com.bin",
	"quic_initial_www_google_com.bin",
	"quic_short_header.bin",
	"stun.bin",
	"t2.bin",
	"tls_clienthello_gosuslugi_ru.bin",
	"tls_clienthello_iana_org.bin",
	"tls_clienthello_max_ru.bin",
	"tls_clienthello_rutracker_org_kyber.bin",
	"tls_clienthello_sberbank_ru.bin",
	"tls_clienthello_vk_com.bin",
	"tls_clienthello_vk_com_kyber.bin",
	"tls_clienthello_www_google_com.bin",
	"tls_clienthello_www_onetrust_com.bin",
	"wireguard_initiation.bin",
	"wireguard_response.bin",
	"zero_1024.bin",
	"zero_256.bin",
	"zero_512.bin",
}

// Lists referenced by the list mode switch.
const (
	ListHostsUserExclude = "zapret-hosts-user-exclude.txt"
	ListIPUser           = "zapret-ip-user.txt"
)

var defaultLists = []string{
	"zapret-hosts-google.txt",
	ListHostsUserExclude,
	ListIPUser,
}

var defaultFilters = []string{
	"windivert_part.dht.txt",
	"windivert_part.discord_media.txt",
	"windivert_part.quic_initial_ietf.txt",
	"windivert_part.stun.txt",
	"windivert_part.wireguard.txt",
}

// Default returns the manifest shipped with the application.
func Default() Manifest {
	binaries := make([]Asset, 0, len(defaultBinaries))
	for _, name := range defaultBinaries {
		binaries = append(binaries, Asset{
			Name:      name,
			SourceURL: binariesBaseURL + "/" + name,
			Category:  CategoryBinaries,
			TrackHash: true,
		})
	}

	return Manifest{
		Binaries: binaries,
		Fake:     fromBase(CategoryFake, fakeBaseURL, defaultFake),
		Lists:    fromBase(CategoryLists, listsBaseURL, defaultLists),
		Filters:  fromBase(CategoryFilters, filtersBaseURL, defaultFilters),
	}
}
